// Package fswalk is the fsview-only Metadata Capture component: it walks a
// directory tree and produces the Folder/File/Problem entity tree that
// feeds the index directly (fsview does not stage through an Archive —
// §6 "fsview: not archive-stored"). Every visited entry is assigned a
// sequential id as it is discovered, depth-first, so the resulting slices
// are already in the order the Hierarchy Builder (§4.7) and
// internal/index/fsviewdb expect.
//
// Grounded on the teacher's cli/consumer.go listFiles helper
// (filepath.WalkDir over a root, collecting paths) and common/docker.go's
// filepath.Walk usage, generalized from a flat path list into a typed,
// id-assigned Folder/File/Problem tree with symlink detection and
// per-entry content fingerprinting for the Duplicate Analyzer.
package fswalk

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/dup"
	"github.com/rerupp/fsweather/internal/model"
)

// Result collects every row produced by a Walk, in depth-first discovery
// order: Folders[0] is always the root.
type Result struct {
	Folders  []model.FolderMeta
	Files    []model.FileMeta
	Problems []model.ProblemMeta
	// Checksums is parallel to Files: Checksums[i] is the content
	// fingerprint for Files[i], kept alongside rather than inside
	// model.FileMeta so the read-side type stays free of a write-only
	// column (an empty string marks an unread symlink target).
	Checksums []string
}

// Options configures one Walk call.
type Options struct {
	// Fingerprinter computes each file's content fingerprint. Defaults to
	// dup.SHA256Fingerprinter when nil.
	Fingerprinter dup.Fingerprinter
	// FollowSymlinks controls whether a symlink to a directory is
	// descended into. Symlinks to files are always recorded as files with
	// IsSymlink set, never dereferenced for fingerprinting.
	FollowSymlinks bool
}

// Walk walks root (the registered folder entity's pathname, with rootName
// as its display name) and returns the full Folder/File/Problem tree.
// Entries that cannot be stat'd or read are recorded as Problems and do
// not abort the walk, matching §7's "skip affected entry, log, continue"
// propagation policy generalized from archive entries to filesystem
// errors during capture.
func Walk(root, rootName string, opts Options) (Result, error) {
	fp := opts.Fingerprinter
	if fp == nil {
		fp = dup.SHA256Fingerprinter{}
	}

	info, err := os.Lstat(root)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.NotFound, "walk root "+root, err)
	}
	if !info.IsDir() {
		return Result{}, coreerr.New(coreerr.Invalid, "walk root is not a directory: "+root)
	}

	w := &walker{opts: opts, fp: fp, folderSize: map[int64]int64{}}
	rootID := w.nextID()
	w.result.Folders = append(w.result.Folders, model.FolderMeta{
		ID: rootID, ParentID: 0, Pathname: root, Name: rootName,
		Created: info.ModTime(), Modified: info.ModTime(),
	})
	if err := w.walkDir(root, rootID); err != nil {
		return Result{}, err
	}

	for i := range w.result.Folders {
		w.result.Folders[i].Size = w.folderSize[w.result.Folders[i].ID]
	}
	return w.result, nil
}

type walker struct {
	opts       Options
	fp         dup.Fingerprinter
	result     Result
	seq        int64
	folderSize map[int64]int64 // folder id -> cumulative size of direct + nested files
}

func (w *walker) nextID() int64 {
	w.seq++
	return w.seq
}

// addSize attributes n bytes to folderID and every ancestor up to the root
// by walking the already-recorded parent chain.
func (w *walker) addSize(folderID int64, n int64) {
	for id := folderID; id != 0; {
		w.folderSize[id] += n
		id = w.parentOf(id)
	}
}

func (w *walker) parentOf(folderID int64) int64 {
	for _, f := range w.result.Folders {
		if f.ID == folderID {
			return f.ParentID
		}
	}
	return 0
}

// walkDir visits dir's direct children, recursing into subdirectories.
// parentID is the already-assigned id of dir's own FolderMeta row.
func (w *walker) walkDir(dir string, parentID int64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.result.Problems = append(w.result.Problems, model.ProblemMeta{
			ParentID: parentID, Pathname: dir, Description: err.Error(),
		})
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			w.result.Problems = append(w.result.Problems, model.ProblemMeta{
				ParentID: parentID, Pathname: path, Description: err.Error(),
			})
			continue
		}

		isSymlink := info.Mode()&fs.ModeSymlink != 0
		if entry.IsDir() || (isSymlink && w.opts.FollowSymlinks && isDirSymlink(path)) {
			id := w.nextID()
			w.result.Folders = append(w.result.Folders, model.FolderMeta{
				ID: id, ParentID: parentID, Pathname: path, Name: entry.Name(),
				Created: info.ModTime(), Modified: info.ModTime(),
			})
			if err := w.walkDir(path, id); err != nil {
				return err
			}
			continue
		}

		if isSymlink {
			// A symlink we are not following: record it, no content to
			// fingerprint.
			id := w.nextID()
			w.result.Files = append(w.result.Files, model.FileMeta{
				ID: id, ParentID: parentID, Pathname: path, Name: entry.Name(),
				Size: info.Size(), Modified: info.ModTime(), IsSymlink: true,
			})
			w.result.Checksums = append(w.result.Checksums, "")
			w.addSize(parentID, info.Size())
			continue
		}

		payload, err := os.ReadFile(path)
		if err != nil {
			w.result.Problems = append(w.result.Problems, model.ProblemMeta{
				ParentID: parentID, Pathname: path, Description: err.Error(),
			})
			continue
		}

		id := w.nextID()
		w.result.Files = append(w.result.Files, model.FileMeta{
			ID: id, ParentID: parentID, Pathname: path, Name: entry.Name(),
			Size: info.Size(), Created: info.ModTime(), Modified: info.ModTime(),
		})
		w.result.Checksums = append(w.result.Checksums, w.fp.Fingerprint(info.Size(), payload))
		w.addSize(parentID, info.Size())
	}
	return nil
}

func isDirSymlink(path string) bool {
	info, err := os.Stat(path) // Stat follows the link
	return err == nil && info.IsDir()
}

// Package archive implements the per-entity compressed container described
// in §4.2: a standard ZIP file whose entries are named
// "<alias>/<key>.json", addressed by a caller-supplied key that is unique
// within the archive. Updates are not applied in place — ZIP files are not
// cheaply mutable — so Append follows the safe-update protocol (write a
// sibling temp archive, then rename-swap it into place).
//
// Adapted from the teacher's archive/unzip.go (same archive/zip usage,
// same zip-slip-aware entry naming discipline) and generalized from a
// one-shot extraction helper into a full read/append/iterate container.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/storedir"
)

// busyFlags tracks, per absolute archive path, whether an Append is
// currently in flight so a concurrent Append on the same archive fails
// fast with ArchiveBusy instead of corrupting the safe-update protocol.
var busyFlags sync.Map // string -> *int32

func acquireBusy(path string) bool {
	v, _ := busyFlags.LoadOrStore(path, new(int32))
	flag := v.(*int32)
	return atomic.CompareAndSwapInt32(flag, 0, 1)
}

func releaseBusy(path string) {
	if v, ok := busyFlags.Load(path); ok {
		atomic.StoreInt32(v.(*int32), 0)
	}
}

// Archive is a handle onto one entity's ZIP container. It does not keep
// the underlying file open between calls.
type Archive struct {
	alias  string
	handle *storedir.FileHandle
}

// Create writes an empty, well-formed archive at handle's path. It uses
// the same write-then-rename discipline as Append so a crash mid-create
// never leaves a half-written file visible under the final name.
func Create(alias string, handle *storedir.FileHandle) (*Archive, error) {
	tmp := handle.Path() + ".tmp"
	f, err := openTruncate(tmp)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "create archive "+alias, err)
	}
	w := zip.NewWriter(f)
	if err := w.Close(); err != nil {
		f.Close()
		return nil, coreerr.Wrap(coreerr.Io, "close empty archive "+alias, err)
	}
	if err := f.Close(); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "close archive file "+alias, err)
	}
	if err := os.Rename(tmp, handle.Path()); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "finalize new archive "+alias, err)
	}
	return &Archive{alias: alias, handle: handle}, nil
}

// Open validates that handle names a well-formed ZIP archive and returns a
// handle onto it. The archive is not kept open; each operation reopens it.
func Open(alias string, handle *storedir.FileHandle) (*Archive, error) {
	r, err := zip.OpenReader(handle.Path())
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveCorrupt, "open archive "+alias, err)
	}
	r.Close()
	return &Archive{alias: alias, handle: handle}, nil
}

// Alias returns the entity alias this archive belongs to.
func (a *Archive) Alias() string {
	return a.alias
}

func entryName(alias, key string) string {
	return alias + "/" + key + ".json"
}

func keyFromEntryName(alias, name string) (string, bool) {
	prefix := alias + "/"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"), true
}

// KeyIterator yields archive keys in ascending order.
type KeyIterator struct {
	keys []string
	idx  int
}

// Next returns the next key and true, or ("", false) when exhausted.
func (it *KeyIterator) Next() (string, bool) {
	if it.idx >= len(it.keys) {
		return "", false
	}
	k := it.keys[it.idx]
	it.idx++
	return k, true
}

// IterKeys returns a lazy ascending sequence of every key in the archive.
func (a *Archive) IterKeys() (*KeyIterator, error) {
	r, err := zip.OpenReader(a.handle.Path())
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveCorrupt, "iter keys "+a.alias, err)
	}
	defer r.Close()

	keys := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if k, ok := keyFromEntryName(a.alias, f.Name); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &KeyIterator{keys: keys}, nil
}

// EntryIterator yields ArchiveEntry values, decompressing each entry's
// payload lazily as Next is called rather than materializing every
// payload up front.
type EntryIterator struct {
	rc      *zip.ReadCloser
	files   []*zip.File
	keys    []string
	idx     int
}

// Next returns the next ArchiveEntry and true, or an empty ArchiveEntry and
// false once exhausted. Call Close when done iterating early.
func (it *EntryIterator) Next() (model.ArchiveEntry, bool, error) {
	if it.idx >= len(it.files) {
		return model.ArchiveEntry{}, false, nil
	}
	f := it.files[it.idx]
	key := it.keys[it.idx]
	it.idx++

	rc, err := f.Open()
	if err != nil {
		return model.ArchiveEntry{}, false, coreerr.Wrap(coreerr.ArchiveCorrupt, "open entry "+f.Name, err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return model.ArchiveEntry{}, false, coreerr.Wrap(coreerr.ArchiveCorrupt, "read entry "+f.Name, err)
	}

	return model.ArchiveEntry{
		Key:              key,
		CompressedSize:   int64(f.CompressedSize64),
		UncompressedSize: int64(f.UncompressedSize64),
		ModifiedTime:     f.Modified,
		Payload:          payload,
	}, true, nil
}

// Close releases the underlying archive file handle.
func (it *EntryIterator) Close() error {
	if it.rc == nil {
		return nil
	}
	return it.rc.Close()
}

// IterRange returns a lazy sequence of ArchiveEntry ordered by key
// ascending, or descending if requested, optionally restricted to keys
// within rng (inclusive). A nil rng selects every entry.
func (a *Archive) IterRange(rng *model.DateRange, descending bool) (*EntryIterator, error) {
	r, err := zip.OpenReader(a.handle.Path())
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveCorrupt, "iter range "+a.alias, err)
	}

	type pair struct {
		key string
		f   *zip.File
	}
	pairs := make([]pair, 0, len(r.File))
	for _, f := range r.File {
		k, ok := keyFromEntryName(a.alias, f.Name)
		if !ok {
			continue
		}
		if rng != nil {
			t, err := time.Parse("2006-01-02", k)
			if err == nil && (t.Before(rng.Start) || t.After(rng.End)) {
				continue
			}
		}
		pairs = append(pairs, pair{key: k, f: f})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if descending {
			return pairs[i].key > pairs[j].key
		}
		return pairs[i].key < pairs[j].key
	})

	files := make([]*zip.File, len(pairs))
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		files[i] = p.f
		keys[i] = p.key
	}
	return &EntryIterator{rc: r, files: files, keys: keys}, nil
}

// IterKeysSelected returns entries in exactly the order of keys, skipping
// any key absent from the archive.
func (a *Archive) IterKeysSelected(keys []string) (*EntryIterator, error) {
	r, err := zip.OpenReader(a.handle.Path())
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveCorrupt, "iter selected "+a.alias, err)
	}

	byKey := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		if k, ok := keyFromEntryName(a.alias, f.Name); ok {
			byKey[k] = f
		}
	}

	files := make([]*zip.File, 0, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if f, ok := byKey[k]; ok {
			files = append(files, f)
			ordered = append(ordered, k)
		}
	}
	return &EntryIterator{rc: r, files: files, keys: ordered}, nil
}

// Append writes entries into the archive using the safe-update protocol:
// open the existing archive, copy every entry unchanged into a sibling
// temp archive, append each new entry whose key is not already present,
// then rename-swap the temp archive into place. Keys already present are
// silently skipped, not replaced; the returned set names only the keys
// that were actually added. Concurrent Append calls on the same archive
// path fail fast with ArchiveBusy.
func (a *Archive) Append(entries []model.ArchiveEntry) (map[string]bool, error) {
	path := a.handle.Path()
	if !acquireBusy(path) {
		return nil, coreerr.New(coreerr.ArchiveBusy, "concurrent append to "+a.alias)
	}
	defer releaseBusy(path)

	existing, err := zip.OpenReader(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveCorrupt, "append open "+a.alias, err)
	}
	defer existing.Close()

	have := make(map[string]bool, len(existing.File))
	for _, f := range existing.File {
		if k, ok := keyFromEntryName(a.alias, f.Name); ok {
			have[k] = true
		}
	}

	tmpPath := path + ".tmp"
	tmp, err := openTruncate(tmpPath)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "append create temp "+a.alias, err)
	}
	w := zip.NewWriter(tmp)

	// Step: copy every existing entry unchanged.
	for _, f := range existing.File {
		if err := copyEntry(w, f); err != nil {
			w.Close()
			tmp.Close()
			return nil, coreerr.Wrap(coreerr.Io, "append copy existing "+f.Name, err)
		}
	}

	// Step: append each new entry whose key is not already present.
	added := make(map[string]bool)
	for _, e := range entries {
		if have[e.Key] {
			continue
		}
		hdr := &zip.FileHeader{
			Name:     entryName(a.alias, e.Key),
			Method:   zip.Deflate,
			Modified: e.ModifiedTime,
		}
		ew, err := w.CreateHeader(hdr)
		if err != nil {
			w.Close()
			tmp.Close()
			return nil, coreerr.Wrap(coreerr.Io, "append new entry "+e.Key, err)
		}
		if _, err := ew.Write(e.Payload); err != nil {
			w.Close()
			tmp.Close()
			return nil, coreerr.Wrap(coreerr.Io, "append write payload "+e.Key, err)
		}
		added[e.Key] = true
	}

	if err := w.Close(); err != nil {
		tmp.Close()
		return nil, coreerr.Wrap(coreerr.Io, "append flush "+a.alias, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "append close temp "+a.alias, err)
	}
	existing.Close() // release read handle before the rename dance

	if err := swapIntoPlace(path, tmpPath); err != nil {
		return nil, coreerr.Wrap(coreerr.ArchiveBusy, "append finalize "+a.alias, err)
	}

	return added, nil
}

// copyEntry copies f's decompressed bytes into w under the same name and
// modification time, recompressing with Deflate.
func copyEntry(w *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	hdr := &zip.FileHeader{
		Name:     f.Name,
		Method:   zip.Deflate,
		Modified: f.Modified,
	}
	ew, err := w.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, rc)
	return err
}

// Summary reports aggregate size information across every entry.
func (a *Archive) Summary() (model.ArchiveSummary, error) {
	r, err := zip.OpenReader(a.handle.Path())
	if err != nil {
		return model.ArchiveSummary{}, coreerr.Wrap(coreerr.ArchiveCorrupt, "summary "+a.alias, err)
	}
	defer r.Close()

	var s model.ArchiveSummary
	for _, f := range r.File {
		if _, ok := keyFromEntryName(a.alias, f.Name); !ok {
			continue
		}
		s.Count++
		s.CompressedSize += int64(f.CompressedSize64)
		s.RawSize += int64(f.UncompressedSize64)
	}
	overall, err := a.handle.Size()
	if err != nil {
		return model.ArchiveSummary{}, err
	}
	s.OverallSize = overall
	return s, nil
}

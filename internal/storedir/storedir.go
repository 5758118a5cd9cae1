// Package storedir owns the store directory root: it vends file and
// archive handles by name without caching them, and proves the root names
// an existing directory before anything else touches it. Adapted from the
// teacher's filesystem-handle conventions in common/shell.go and
// common/utils.go, generalized into the Store Directory component of
// §4.1.
package storedir

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rerupp/fsweather/internal/coreerr"
)

// StoreDir is the root directory holding the registry manifest, per-entity
// archives, and the index file. It is immutable once opened.
type StoreDir struct {
	path string
}

// Open proves path names an existing directory and returns a StoreDir
// rooted there. It never creates the directory.
func Open(path string) (*StoreDir, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerr.Wrap(coreerr.NotFound, "store directory does not exist: "+path, err)
		}
		return nil, coreerr.Wrap(coreerr.Io, "stat store directory: "+path, err)
	}
	if !info.IsDir() {
		return nil, coreerr.New(coreerr.Invalid, "not a directory: "+path)
	}
	return &StoreDir{path: path}, nil
}

// Path returns the store directory's root path.
func (s *StoreDir) Path() string {
	return s.path
}

// File composes path/name into a FileHandle. Existence is not checked.
func (s *StoreDir) File(name string) *FileHandle {
	return &FileHandle{path: filepath.Join(s.path, name)}
}

// Archive composes path/<alias>.zip into a FileHandle.
func (s *StoreDir) Archive(alias string) *FileHandle {
	return s.File(alias + ".zip")
}

// FileHandle names a file inside the store directory without holding it
// open. All operations resolve the name lazily.
type FileHandle struct {
	path string
}

// Path returns the absolute path the handle names.
func (h *FileHandle) Path() string {
	return h.path
}

// Exists reports whether the named file currently exists.
func (h *FileHandle) Exists() bool {
	_, err := os.Stat(h.path)
	return err == nil
}

// Size returns the current file size, or an error if the file is absent.
func (h *FileHandle) Size() (int64, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, coreerr.Wrap(coreerr.NotFound, "size: "+h.path, err)
		}
		return 0, coreerr.Wrap(coreerr.Io, "size: "+h.path, err)
	}
	return info.Size(), nil
}

// Reader opens the file read-only. The caller must close it.
func (h *FileHandle) Reader() (*os.File, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerr.Wrap(coreerr.NotFound, "open for read: "+h.path, err)
		}
		return nil, coreerr.Wrap(coreerr.Io, "open for read: "+h.path, err)
	}
	return f, nil
}

// Writer opens the file for read+write without truncating, creating it if
// missing. The caller must close it.
func (h *FileHandle) Writer() (*os.File, error) {
	f, err := os.OpenFile(h.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "open for write: "+h.path, err)
	}
	return f, nil
}

// Remove deletes the file; it is a no-op (not an error) if the file is
// already absent.
func (h *FileHandle) Remove() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.Io, "remove: "+h.path, err)
	}
	return nil
}

// Touch creates the file if missing, or updates its access/mod time if it
// already exists.
func (h *FileHandle) Touch() error {
	if h.Exists() {
		t := time.Now()
		return os.Chtimes(h.path, t, t)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return coreerr.Wrap(coreerr.Io, "touch: "+h.path, err)
	}
	return f.Close()
}

// Rename atomically moves the handle's file to a new name within the same
// directory, returning a FileHandle for the new name.
func (h *FileHandle) Rename(to string) (*FileHandle, error) {
	newPath := filepath.Join(filepath.Dir(h.path), to)
	if err := os.Rename(h.path, newPath); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "rename "+h.path+" -> "+newPath, err)
	}
	return &FileHandle{path: newPath}, nil
}

// CopyFrom streams src into the handle's file, creating/truncating it.
func (h *FileHandle) CopyFrom(src io.Reader) error {
	dst, err := os.OpenFile(h.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return coreerr.Wrap(coreerr.Io, "create: "+h.path, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return coreerr.Wrap(coreerr.Io, "copy into: "+h.path, err)
	}
	return nil
}

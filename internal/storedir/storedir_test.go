package storedir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/coreerr"
)

func TestOpenRequiresExistingDirectory(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Path())

	_, err = Open(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, coreerr.Is(err, coreerr.NotFound))

	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Open(file)
	require.Error(t, err)
	assert.True(t, coreerr.Is(err, coreerr.Invalid))
}

func TestFileHandleLifecycle(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	h := store.File("locations.json")
	assert.False(t, h.Exists())
	_, err = h.Size()
	assert.True(t, coreerr.Is(err, coreerr.NotFound))

	require.NoError(t, h.CopyFrom(strings.NewReader(`{"locations":[]}`)))
	assert.True(t, h.Exists())
	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(`{"locations":[]}`)), size)

	r, err := h.Reader()
	require.NoError(t, err)
	defer r.Close()

	renamed, err := h.Rename("locations.bck")
	require.NoError(t, err)
	assert.True(t, renamed.Exists())
	assert.False(t, h.Exists())

	require.NoError(t, renamed.Remove())
	assert.False(t, renamed.Exists())
	require.NoError(t, renamed.Remove()) // idempotent
}

func TestArchiveHandleNaming(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	h := store.Archive("seattle")
	assert.Equal(t, filepath.Join(dir, "seattle.zip"), h.Path())
}

func TestTouchCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	h := store.File("touched")
	require.NoError(t, h.Touch())
	assert.True(t, h.Exists())
	require.NoError(t, h.Touch())
}

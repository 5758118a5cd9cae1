package archive

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/storedir"
)

func newStore(t *testing.T) *storedir.StoreDir {
	t.Helper()
	dir := t.TempDir()
	store, err := storedir.Open(dir)
	require.NoError(t, err)
	return store
}

func entries(keys ...string) []model.ArchiveEntry {
	out := make([]model.ArchiveEntry, len(keys))
	for i, k := range keys {
		out[i] = model.ArchiveEntry{
			Key:          k,
			ModifiedTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Payload:      []byte(`{"daily":{"data":[{"temperatureHigh":60}]}}`),
		}
	}
	return out
}

func TestCreateThenOpenEmptyArchive(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")

	a, err := Create("t", h)
	require.NoError(t, err)

	summary, err := a.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)

	reopened, err := Open("t", h)
	require.NoError(t, err)
	keys, err := reopened.IterKeys()
	require.NoError(t, err)
	_, ok := keys.Next()
	assert.False(t, ok)
}

func TestAppendRoundTrip(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")
	a, err := Create("t", h)
	require.NoError(t, err)

	added, err := a.Append(entries("2024-01-15", "2024-01-16", "2024-01-17"))
	require.NoError(t, err)
	assert.Len(t, added, 3)

	keysIt, err := a.IterKeys()
	require.NoError(t, err)
	var got []string
	for {
		k, ok := keysIt.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	assert.Equal(t, []string{"2024-01-15", "2024-01-16", "2024-01-17"}, got)
}

func TestAppendIdempotence(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")
	a, err := Create("t", h)
	require.NoError(t, err)

	_, err = a.Append(entries("2024-01-15"))
	require.NoError(t, err)

	before, err := a.Summary()
	require.NoError(t, err)

	added, err := a.Append(entries("2024-01-15"))
	require.NoError(t, err)
	assert.Empty(t, added)

	after, err := a.Summary()
	require.NoError(t, err)
	assert.Equal(t, before.Count, after.Count)
}

func TestIterKeysSelectedPreservesInputOrder(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")
	a, err := Create("t", h)
	require.NoError(t, err)
	_, err = a.Append(entries("2024-01-15", "2024-01-16", "2024-01-17"))
	require.NoError(t, err)

	it, err := a.IterKeysSelected([]string{"2024-01-17", "2024-01-15", "missing"})
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, e.Key)
	}
	assert.Equal(t, []string{"2024-01-17", "2024-01-15"}, got)
}

func TestIterRangeAscendingAndDescending(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")
	a, err := Create("t", h)
	require.NoError(t, err)
	_, err = a.Append(entries("2024-01-01", "2024-01-15", "2024-02-01"))
	require.NoError(t, err)

	rng := &model.DateRange{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	it, err := a.IterRange(rng, false)
	require.NoError(t, err)
	defer it.Close()

	e, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", e.Key)
	_, ok, _ = it.Next()
	assert.False(t, ok)

	descIt, err := a.IterRange(nil, true)
	require.NoError(t, err)
	defer descIt.Close()
	first, _, err := descIt.Next()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", first.Key)
}

func TestConcurrentAppendFailsBusy(t *testing.T) {
	store := newStore(t)
	h := store.Archive("t")
	a, err := Create("t", h)
	require.NoError(t, err)

	require.True(t, acquireBusy(h.Path()))
	defer releaseBusy(h.Path())

	_, err = a.Append(entries("2024-01-15"))
	require.Error(t, err)
	assert.True(t, coreerr.Is(err, coreerr.ArchiveBusy))
}

func TestOpenRejectsCorruptArchive(t *testing.T) {
	store := newStore(t)
	h := store.File("broken.zip")
	require.NoError(t, h.CopyFrom(strings.NewReader("not a zip file")))

	_, err := Open("broken", h)
	require.Error(t, err)
	assert.True(t, coreerr.Is(err, coreerr.ArchiveCorrupt))
}

package ingest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/archive"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/index/hybriddb"
	"github.com/rerupp/fsweather/internal/logging"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/storedir"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	cfg := logging.DefaultConfig("ingest-test")
	cfg.Level = logging.LevelError
	return logging.NewLogger(logging.New(cfg), nil)
}

func newTestBackend(t *testing.T) *hybriddb.Backend {
	t.Helper()
	conn, err := index.OpenMemory(model.Hybrid)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Init())
	return hybriddb.New(conn)
}

func entryKeys(keys ...string) []model.ArchiveEntry {
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

// seedWorkItems builds n entities, each registered in backend and holding
// an archive with its own set of date keys, returning WorkItems ready for
// Load and the StoreDir they live under (so a test can reach into the
// filesystem, e.g. to corrupt one entity's archive file).
func seedWorkItems(t *testing.T, backend *hybriddb.Backend, n int) ([]WorkItem, *storedir.StoreDir) {
	t.Helper()
	store, err := storedir.Open(t.TempDir())
	require.NoError(t, err)

	items := make([]WorkItem, n)
	for i := 0; i < n; i++ {
		alias := aliasFor(i)
		id, err := backend.AddEntity(model.Entity{
			Name: alias, Alias: alias,
			Attrs: map[string]string{model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC"},
		})
		require.NoError(t, err)

		h := store.Archive(alias)
		a, err := archive.Create(alias, h)
		require.NoError(t, err)
		_, err = a.Append(entryKeys(dateFor(i, 0), dateFor(i, 1), dateFor(i, 2)))
		require.NoError(t, err)

		items[i] = WorkItem{EntityID: id, Alias: alias, Archive: a}
	}
	return items, store
}

func aliasFor(i int) string {
	return string(rune('a' + i))
}

func dateFor(entity, day int) string {
	return time.Date(2024, 1, 1+entity*10+day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// TestLoadThreadedAndSerialProduceIdenticalHistoryCounts exercises scenario
// 4: the same entity set mined with Threads: 1 (serial) and Threads: 8
// (parallel producers, single consumer) must leave the Index with the same
// per-entity history_counts, since the worker pool only parallelizes
// mining — commits still funnel through one consumer.
func TestLoadThreadedAndSerialProduceIdenticalHistoryCounts(t *testing.T) {
	serialBackend := newTestBackend(t)
	serialItems, _ := seedWorkItems(t, serialBackend, 5)
	serialResult, err := Load(context.Background(), serialBackend, serialItems, Options{Threads: 1}, testLogger(t))
	require.NoError(t, err)
	require.Empty(t, serialResult.Failed)

	threadedBackend := newTestBackend(t)
	threadedItems, _ := seedWorkItems(t, threadedBackend, 5)
	threadedResult, err := Load(context.Background(), threadedBackend, threadedItems, Options{Threads: 8}, testLogger(t))
	require.NoError(t, err)
	require.Empty(t, threadedResult.Failed)

	assert.Equal(t, serialResult.Inserted, threadedResult.Inserted)

	serialSummaries, err := serialBackend.HistorySummaries()
	require.NoError(t, err)
	threadedSummaries, err := threadedBackend.HistorySummaries()
	require.NoError(t, err)
	assert.Equal(t, len(serialSummaries), len(threadedSummaries))
	for i := range serialItems {
		alias := serialItems[i].Alias
		var serialID, threadedID int64
		for _, it := range serialItems {
			if it.Alias == alias {
				serialID = it.EntityID
			}
		}
		for _, it := range threadedItems {
			if it.Alias == alias {
				threadedID = it.EntityID
			}
		}
		assert.Equal(t, serialSummaries[serialID], threadedSummaries[threadedID], "alias %s", alias)
	}
}

// TestLoadIngestConsistency is the §8 "Ingest consistency" property: after
// Load commits, every archive key the producers mined has exactly one
// metadata row, and no entity has a row for a key its archive never held.
func TestLoadIngestConsistency(t *testing.T) {
	backend := newTestBackend(t)
	items, _ := seedWorkItems(t, backend, 3)

	result, err := Load(context.Background(), backend, items, Options{Threads: 4}, testLogger(t))
	require.NoError(t, err)
	require.Empty(t, result.Failed)

	for i, item := range items {
		dates, err := backend.HistoryDates(item.EntityID)
		require.NoError(t, err)
		want := []string{dateFor(i, 0), dateFor(i, 1), dateFor(i, 2)}
		assert.ElementsMatch(t, want, dates, "alias %s", item.Alias)
	}
}

// TestLoadReportsPerEntityFailureWithoutLosingOthers exercises §5's
// failure-containment rule: an entity whose archive file is corrupt fails
// to mine and is recorded in Failed, while the other entity's rows still
// commit.
func TestLoadReportsPerEntityFailureWithoutLosingOthers(t *testing.T) {
	backend := newTestBackend(t)
	items, store := seedWorkItems(t, backend, 2)

	badAlias := items[1].Alias
	require.NoError(t, os.WriteFile(store.Archive(badAlias).Path(), []byte("not a zip file"), 0o644))

	result, err := Load(context.Background(), backend, items, Options{Threads: 2}, testLogger(t))
	require.NoError(t, err)
	require.Contains(t, result.Failed, badAlias)

	dates, err := backend.HistoryDates(items[0].EntityID)
	require.NoError(t, err)
	assert.Len(t, dates, 3)
}

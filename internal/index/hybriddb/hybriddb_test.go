package hybriddb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	conn, err := index.OpenMemory(model.Hybrid)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Init())
	return New(conn)
}

func TestAddEntityThenLocations(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{
		Name: "San Francisco", Alias: "sf",
		Attrs: map[string]string{model.AttrLongitude: "-122.4", model.AttrLatitude: "37.7", model.AttrTZ: "America/Los_Angeles"},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	entities, err := b.Locations()
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "sf", entities[0].Alias)
}

func TestAddHistoriesSkipsDuplicateKeys(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	records := []model.Record{
		{Key: "2024-01-15", MTime: time.Now()},
		{Key: "2024-01-16", MTime: time.Now()},
	}
	inserted, err := b.AddHistories(id, records)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = b.AddHistories(id, records)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	dates, err := b.HistoryDates(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15", "2024-01-16"}, dates)
}

func TestDailyHistoryRangeFilter(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	_, err = b.AddHistories(id, []model.Record{
		{Key: "2024-01-01", MTime: time.Now()},
		{Key: "2024-01-15", MTime: time.Now()},
		{Key: "2024-02-01", MTime: time.Now()},
	})
	require.NoError(t, err)

	rng := &model.DateRange{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	records, err := b.DailyHistory(id, rng)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-15", records[0].Key)
}

func TestReloadHistoriesReplacesExistingRows(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	_, err = b.AddHistories(id, []model.Record{
		{Key: "2024-01-01", MTime: time.Now()},
		{Key: "2024-01-02", MTime: time.Now()},
	})
	require.NoError(t, err)

	inserted, err := b.ReloadHistories(id, []model.Record{
		{Key: "2024-03-01", MTime: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	dates, err := b.HistoryDates(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01"}, dates)
}

func TestAddHistoriesBatchSpansEntitiesInOneTransaction(t *testing.T) {
	b := newBackend(t)
	id1, err := b.AddEntity(model.Entity{Name: "a", Alias: "a", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)
	id2, err := b.AddEntity(model.Entity{Name: "b", Alias: "b", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	inserted, err := b.AddHistoriesBatch(map[int64][]model.Record{
		id1: {{Key: "2024-01-01", MTime: time.Now()}},
		id2: {{Key: "2024-01-01", MTime: time.Now()}, {Key: "2024-01-02", MTime: time.Now()}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	summaries, err := b.HistorySummaries()
	require.NoError(t, err)
	assert.Equal(t, 1, summaries[id1])
	assert.Equal(t, 2, summaries[id2])
}

func TestHistorySummariesGroupsByEntity(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)
	_, err = b.AddHistories(id, []model.Record{
		{Key: "2024-01-01", MTime: time.Now()},
		{Key: "2024-01-02", MTime: time.Now()},
	})
	require.NoError(t, err)

	summaries, err := b.HistorySummaries()
	require.NoError(t, err)
	assert.Equal(t, 2, summaries[id])
}

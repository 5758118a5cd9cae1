package normalizeddb

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
	conn, err := index.OpenMemory(model.Normalized)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Init())
	return New(conn)
}

func TestAddHistoriesPersistsTypedFields(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	records := []model.Record{
		{
			Key: "2024-01-15", MTime: time.Now(),
			Fields: map[string]interface{}{
				index.FieldTemperatureHigh: 60.0,
				index.FieldTemperatureLow:  40.0,
			},
		},
	}
	inserted, err := b.AddHistories(id, records)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	got, err := b.DailyHistory(id, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].Fields[index.FieldTemperatureHigh])
	assert.Equal(t, 40.0, got[0].Fields[index.FieldTemperatureLow])
}

func TestAddHistoriesSkipsDuplicateKeysWithoutOrphanHistoryRow(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	records := []model.Record{{Key: "2024-01-15", MTime: time.Now()}}
	_, err = b.AddHistories(id, records)
	require.NoError(t, err)

	inserted, err := b.AddHistories(id, records)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	got, err := b.DailyHistory(id, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReloadHistoriesReplacesHistoryRowsToo(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	_, err = b.AddHistories(id, []model.Record{
		{Key: "2024-01-15", MTime: time.Now(), Fields: map[string]interface{}{
			index.FieldTemperatureHigh: 60.0,
		}},
	})
	require.NoError(t, err)

	inserted, err := b.ReloadHistories(id, []model.Record{
		{Key: "2024-03-01", MTime: time.Now(), Fields: map[string]interface{}{
			index.FieldTemperatureHigh: 72.0,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	got, err := b.DailyHistory(id, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-01", got[0].Key)
	assert.Equal(t, 72.0, got[0].Fields[index.FieldTemperatureHigh])
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
		id1: {{Key: "2024-01-01", MTime: time.Now(), Fields: map[string]interface{}{
			index.FieldTemperatureHigh: 60.0,
		}}},
		id2: {{Key: "2024-01-01", MTime: time.Now()}, {Key: "2024-01-02", MTime: time.Now()}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	got1, err := b.DailyHistory(id1, nil)
	require.NoError(t, err)
	require.Len(t, got1, 1)
	assert.Equal(t, 60.0, got1[0].Fields[index.FieldTemperatureHigh])

	got2, err := b.DailyHistory(id2, nil)
	require.NoError(t, err)
	assert.Len(t, got2, 2)
}

func TestMissingFieldsSurfaceAsAbsent(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	_, err = b.AddHistories(id, []model.Record{{Key: "2024-01-15", MTime: time.Now()}})
	require.NoError(t, err)

	got, err := b.DailyHistory(id, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, present := got[0].Fields[index.FieldTemperatureHigh]
	assert.False(t, present)
}

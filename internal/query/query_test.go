package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/index/hybriddb"
	"github.com/rerupp/fsweather/internal/model"
)

func newBackend(t *testing.T) *hybriddb.Backend {
	t.Helper()
	conn, err := index.OpenMemory(model.Hybrid)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Init())
	return hybriddb.New(conn)
}

func TestFromDatesReducesConsecutiveRuns(t *testing.T) {
	ranges, err := FromDates([]string{"2024-01-01", "2024-01-02", "2024-01-05"})
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "2024-01-01", ranges[0].Start.Format(dayLayout))
	assert.Equal(t, "2024-01-02", ranges[0].End.Format(dayLayout))
	assert.Equal(t, "2024-01-05", ranges[1].Start.Format(dayLayout))
	assert.Equal(t, "2024-01-05", ranges[1].End.Format(dayLayout))
}

func TestFromDatesSingleDay(t *testing.T) {
	ranges, err := FromDates([]string{"2024-06-01"})
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.True(t, ranges[0].Start.Equal(ranges[0].End))
}

func TestFromDatesEmpty(t *testing.T) {
	ranges, err := FromDates(nil)
	require.NoError(t, err)
	assert.Nil(t, ranges)
}

func TestGetEntitiesFiltersByNameOrAlias(t *testing.T) {
	b := newBackend(t)
	_, err := b.AddEntity(model.Entity{Name: "San Francisco", Alias: "sf", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)
	_, err = b.AddEntity(model.Entity{Name: "Portland", Alias: "pdx", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	matches, err := GetEntities(b, []string{"San*"}, false, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sf", matches[0].Alias)

	all, err := GetEntities(b, nil, false, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHistoryCountsIncludesZeroEntities(t *testing.T) {
	b := newBackend(t)
	id, err := b.AddEntity(model.Entity{Name: "t", Alias: "t", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	counts, err := HistoryCounts(b)
	require.NoError(t, err)
	assert.Equal(t, 0, counts["t"])

	_, err = b.AddHistories(id, []model.Record{{Key: "2024-01-01", MTime: time.Now()}})
	require.NoError(t, err)

	counts, err = HistoryCounts(b)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["t"])
}

func TestDBSizeApportionsByRowShare(t *testing.T) {
	b := newBackend(t)
	id1, err := b.AddEntity(model.Entity{Name: "a", Alias: "a", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)
	id2, err := b.AddEntity(model.Entity{Name: "b", Alias: "b", Attrs: map[string]string{
		model.AttrLongitude: "0", model.AttrLatitude: "0", model.AttrTZ: "UTC",
	}})
	require.NoError(t, err)

	_, err = b.AddHistories(id1, []model.Record{{Key: "2024-01-01", MTime: time.Now()}, {Key: "2024-01-02", MTime: time.Now()}})
	require.NoError(t, err)
	_, err = b.AddHistories(id2, []model.Record{{Key: "2024-01-01", MTime: time.Now()}})
	require.NoError(t, err)

	sizes, err := DBSize(b, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sizes["a"])
	assert.Equal(t, int64(100), sizes["b"])
}

func TestBuildFilterSQL(t *testing.T) {
	clause, args, matchAll := BuildFilterSQL([]string{"*"})
	assert.True(t, matchAll)
	assert.Empty(t, clause)
	assert.Nil(t, args)

	clause, args, matchAll = BuildFilterSQL(nil)
	assert.True(t, matchAll)

	clause, args, matchAll = BuildFilterSQL([]string{"a*", "*b"})
	assert.False(t, matchAll)
	assert.Equal(t, "name LIKE ? OR alias LIKE ? OR name LIKE ? OR alias LIKE ?", clause)
	assert.Equal(t, []interface{}{"a%", "a%", "%b", "%b"}, args)

	clause, _, matchAll = BuildFilterSQL([]string{"a*", "*"})
	assert.True(t, matchAll)
	assert.Empty(t, clause)
}

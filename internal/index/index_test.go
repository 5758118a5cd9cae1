package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rerupp/fsweather/internal/model"
)

func TestInitCreatesHybridSchemaWithoutHistoryTable(t *testing.T) {
	conn, err := OpenMemory(model.Hybrid)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Init())
	assert.True(t, conn.DB().Migrator().HasTable(&LocationRow{}))
	assert.True(t, conn.DB().Migrator().HasTable(&MetadataRow{}))
	assert.False(t, conn.DB().Migrator().HasTable(&HistoryRow{}))
}

func TestInitCreatesNormalizedSchemaWithHistoryTable(t *testing.T) {
	conn, err := OpenMemory(model.Normalized)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Init())
	assert.True(t, conn.DB().Migrator().HasTable(&HistoryRow{}))
}

func TestDropRemovesAllTables(t *testing.T) {
	conn, err := OpenMemory(model.Normalized)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Init())
	require.NoError(t, conn.Drop(false))
	assert.False(t, conn.DB().Migrator().HasTable(&LocationRow{}))
}

func TestTransactionRollsBackOnError(t *testing.T) {
	conn, err := OpenMemory(model.Hybrid)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Init())

	err = conn.Transaction(func(tx *gorm.DB) error {
		tx.Create(&LocationRow{Name: "x", Alias: "x"})
		return assert.AnError
	})
	require.Error(t, err)

	var count int64
	conn.DB().Model(&LocationRow{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

// Package normalizeddb implements index.Backend for Normalized
// deployment: metadata rows are joined 1:1 with flattened payload rows in
// the `history` table, so daily_history and related queries never need to
// reopen the Archive. Grounded on the same teacher db.PGMigrations/
// AutoMigrate convention as hybriddb, extended with the history join.
package normalizeddb

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

// Backend is the Normalized-deployment index.Backend implementation.
type Backend struct {
	conn *index.Conn
}

// New wraps conn, which must have been opened with model.Normalized.
func New(conn *index.Conn) *Backend {
	return &Backend{conn: conn}
}

func (b *Backend) AddEntity(e model.Entity) (int64, error) {
	row := index.LocationRow{
		Name: e.Name, Alias: e.Alias,
		Longitude: e.Attrs[model.AttrLongitude],
		Latitude:  e.Attrs[model.AttrLatitude],
		TZ:        e.Attrs[model.AttrTZ],
	}
	if err := b.conn.DB().Create(&row).Error; err != nil {
		return 0, coreerr.Wrap(coreerr.Internal, "add entity", err)
	}
	return row.ID, nil
}

// AddHistories inserts a metadata row and its joined history row per
// record, skipping keys that already exist for entityID.
func (b *Backend) AddHistories(entityID int64, records []model.Record) (int, error) {
	var inserted int
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		var txErr error
		inserted, txErr = addHistoriesTx(tx, entityID, records)
		return txErr
	})
	if err != nil {
		return inserted, coreerr.Wrap(coreerr.Internal, "add history", err)
	}
	return inserted, nil
}

// AddHistoriesBatch inserts every entity's records inside one transaction,
// in ascending entity-id order so row-level locking is deterministic.
func (b *Backend) AddHistoriesBatch(byEntity map[int64][]model.Record) (int, error) {
	ids := make([]int64, 0, len(byEntity))
	for id := range byEntity {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var inserted int
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			n, txErr := addHistoriesTx(tx, id, byEntity[id])
			if txErr != nil {
				return txErr
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, coreerr.Wrap(coreerr.Internal, "add histories batch", err)
	}
	return inserted, nil
}

func addHistoriesTx(tx *gorm.DB, entityID int64, records []model.Record) (int, error) {
	inserted := 0
	for _, r := range records {
		meta := index.MetadataRow{
			LID: entityID, Date: r.Key,
			StoreSize: r.StoreSize, Size: r.Size, MTime: r.MTime,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&meta)
		if result.Error != nil {
			return inserted, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		history := index.FieldsToHistoryRow(meta.ID, r.Fields)
		if err := tx.Create(&history).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (b *Backend) DailyHistory(entityID int64, rng *model.DateRange) ([]model.Record, error) {
	q := b.conn.DB().Model(&index.MetadataRow{}).Where("lid = ?", entityID)
	if rng != nil {
		q = q.Where("date BETWEEN ? AND ?", rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	}
	var metas []index.MetadataRow
	if err := q.Order("date ASC").Find(&metas).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "daily history", err)
	}
	if len(metas) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(metas))
	for i, m := range metas {
		ids[i] = m.ID
	}
	var histories []index.HistoryRow
	if err := b.conn.DB().Where("mid IN ?", ids).Find(&histories).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "daily history join", err)
	}
	byMID := make(map[int64]index.HistoryRow, len(histories))
	for _, h := range histories {
		byMID[h.MID] = h
	}

	out := make([]model.Record, len(metas))
	for i, m := range metas {
		out[i] = model.Record{
			ID: m.ID, EntityID: m.LID, Key: m.Date,
			StoreSize: m.StoreSize, Size: m.Size, MTime: m.MTime,
			Fields: index.HistoryRowToFields(byMID[m.ID]),
		}
	}
	return out, nil
}

func (b *Backend) HistoryDates(entityID int64) ([]string, error) {
	var dates []string
	err := b.conn.DB().Model(&index.MetadataRow{}).
		Where("lid = ?", entityID).Order("date ASC").Pluck("date", &dates).Error
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "history dates", err)
	}
	return dates, nil
}

func (b *Backend) HistorySummaries() (map[int64]int, error) {
	type row struct {
		LID   int64
		Count int
	}
	var rows []row
	err := b.conn.DB().Model(&index.MetadataRow{}).
		Select("lid, count(*) as count").Group("lid").Find(&rows).Error
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "history summaries", err)
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.LID] = r.Count
	}
	return out, nil
}

// DeleteHistories removes every metadata row (and its joined history row,
// via the foreign-key-free explicit delete below) for entityID.
func (b *Backend) DeleteHistories(entityID int64) error {
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		return deleteHistoriesTx(tx, entityID)
	})
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "delete histories", err)
	}
	return nil
}

func deleteHistoriesTx(tx *gorm.DB, entityID int64) error {
	var ids []int64
	if err := tx.Model(&index.MetadataRow{}).Where("lid = ?", entityID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := tx.Where("mid IN ?", ids).Delete(&index.HistoryRow{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("lid = ?", entityID).Delete(&index.MetadataRow{}).Error
}

// ReloadHistories deletes every existing metadata/history row for entityID
// and inserts records in a single transaction, so a failure anywhere —
// delete or insert — leaves the Index in its pre-reload state (§4.5, §8
// "Reload equivalence").
func (b *Backend) ReloadHistories(entityID int64, records []model.Record) (int, error) {
	var inserted int
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		if err := deleteHistoriesTx(tx, entityID); err != nil {
			return err
		}
		var txErr error
		inserted, txErr = addHistoriesTx(tx, entityID, records)
		return txErr
	})
	if err != nil {
		return 0, coreerr.Wrap(coreerr.Internal, "reload histories", err)
	}
	return inserted, nil
}

func (b *Backend) Locations() ([]model.Entity, error) {
	var rows []index.LocationRow
	if err := b.conn.DB().Order("name ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "locations", err)
	}
	entities := make([]model.Entity, len(rows))
	for i, r := range rows {
		entities[i] = model.Entity{
			ID: r.ID, Name: r.Name, Alias: r.Alias,
			Attrs: map[string]string{
				model.AttrLongitude: r.Longitude,
				model.AttrLatitude:  r.Latitude,
				model.AttrTZ:        r.TZ,
			},
		}
	}
	return entities, nil
}

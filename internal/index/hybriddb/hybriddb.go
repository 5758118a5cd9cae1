// Package hybriddb implements index.Backend for Hybrid deployment: the
// index stores only per-key metadata rows; full payloads remain only in the
// Archive, and this backend's queries return metadata rows without them.
// Grounded on the teacher's
// db.PGMigrations/AutoMigrate convention, scoped down to the metadata
// table only.
package hybriddb

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

// Backend is the Hybrid-deployment index.Backend implementation.
type Backend struct {
	conn *index.Conn
}

// New wraps conn, which must have been opened with model.Hybrid.
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

// AddHistories inserts one metadata row per record, keyed by (lid, date).
// A conflicting key is silently skipped via an ON CONFLICT DO NOTHING
// clause, matching Archive.Append's idempotence.
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
		row := index.MetadataRow{
			LID: entityID, Date: r.Key,
			StoreSize: r.StoreSize, Size: r.Size, MTime: r.MTime,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return inserted, result.Error
		}
		if result.RowsAffected > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// DailyHistory returns metadata-only records (no payload fields — the
// caller must re-read the Archive for those in Hybrid deployment).
func (b *Backend) DailyHistory(entityID int64, rng *model.DateRange) ([]model.Record, error) {
	q := b.conn.DB().Model(&index.MetadataRow{}).Where("lid = ?", entityID)
	if rng != nil {
		q = q.Where("date BETWEEN ? AND ?", rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	}
	var rows []index.MetadataRow
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "daily history", err)
	}
	return toRecords(rows), nil
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

// DeleteHistories removes every metadata row for entityID with a single
// DELETE statement. The Reload path (§4.5) does not call it; it uses
// ReloadHistories.
func (b *Backend) DeleteHistories(entityID int64) error {
	err := b.conn.DB().Where("lid = ?", entityID).Delete(&index.MetadataRow{}).Error
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "delete histories", err)
	}
	return nil
}

func deleteHistoriesTx(tx *gorm.DB, entityID int64) error {
	return tx.Where("lid = ?", entityID).Delete(&index.MetadataRow{}).Error
}

// ReloadHistories deletes every existing metadata row for entityID and
// inserts records in a single transaction, so a failure anywhere — delete
// or insert — leaves the Index in its pre-reload state (§4.5, §8 "Reload
// equivalence").
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

func toRecords(rows []index.MetadataRow) []model.Record {
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = model.Record{
			ID: r.ID, EntityID: r.LID, Key: r.Date,
			StoreSize: r.StoreSize, Size: r.Size, MTime: r.MTime,
		}
	}
	return out
}

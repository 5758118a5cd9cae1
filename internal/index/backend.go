package index

import (
	"github.com/rerupp/fsweather/internal/model"
)

// Backend is the single dispatch boundary of §9: the Ingest Pipeline and
// Query Layer talk only to this interface, never to a Conn or *gorm.DB
// directly, so Hybrid and Normalized deployments can be swapped at Open
// time without either caller knowing which one it got.
type Backend interface {
	// AddEntity registers e's relational row (locations or folders,
	// depending on what the backend was built for) and returns its
	// assigned id.
	AddEntity(e model.Entity) (int64, error)

	// AddHistories inserts metadata (and, for Normalized, flattened
	// payload) rows for entityID inside one transaction of its own. Rows
	// whose key already exists for entityID are skipped, matching
	// Archive.Append's idempotence.
	AddHistories(entityID int64, records []model.Record) (int, error)

	// AddHistoriesBatch inserts records for every entity keyed in byEntity
	// inside a single transaction, so the Ingest Pipeline's consumer (§4.5,
	// §5) either commits the whole run or leaves the Index exactly as it
	// was before the run started — no entity is left partially committed
	// ahead of one that fails later in the same batch.
	AddHistoriesBatch(byEntity map[int64][]model.Record) (int, error)

	// DailyHistory returns records for entityID within rng, in
	// ascending key order.
	DailyHistory(entityID int64, rng *model.DateRange) ([]model.Record, error)

	// HistoryDates returns every metadata key for entityID in ascending
	// order, for date-range reduction by internal/query.
	HistoryDates(entityID int64) ([]string, error)

	// HistorySummaries returns per-entity row counts, keyed by entity id.
	HistorySummaries() (map[int64]int, error)

	// Locations returns every registered entity's relational row.
	Locations() ([]model.Entity, error)

	// DeleteHistories removes every metadata (and, for Normalized, history)
	// row for entityID. Exposed standalone for callers that need a bare
	// delete; the Reload path uses ReloadHistories instead so the delete
	// and the re-insert commit or fail together.
	DeleteHistories(entityID int64) error

	// ReloadHistories deletes every existing metadata row for entityID and
	// inserts records, both inside one transaction, so a failure anywhere
	// leaves the Index in its pre-reload state (§4.5, §8 "Reload
	// equivalence"). Used by the Reload path to drop-and-rebuild one
	// entity's rows from its Archive.
	ReloadHistories(entityID int64, records []model.Record) (int, error)
}

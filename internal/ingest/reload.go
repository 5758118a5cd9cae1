package ingest

import (
	"github.com/rerupp/fsweather/internal/archive"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

// Reload implements §4.5's reload semantics: runs inline, with no worker
// pool, mining every entry from arc and handing the delete-then-reinsert
// to backend.ReloadHistories so both sides of the drop-and-rebuild commit
// or fail together. Atomic on commit — a failure anywhere leaves the
// Index in its pre-reload state.
func Reload(backend index.Backend, entityID int64, arc *archive.Archive) (int, error) {
	entries, err := arc.IterRange(nil, false)
	if err != nil {
		return 0, err
	}
	defer entries.Close()

	var records []model.Record
	for {
		entry, ok, err := entries.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		records = append(records, entryToRecord(entityID, entry))
	}

	return backend.ReloadHistories(entityID, records)
}

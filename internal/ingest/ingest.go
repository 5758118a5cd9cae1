// Package ingest implements the Ingest Pipeline of §4.5: a bounded
// worker pool of producers mining Archives in parallel, feeding a single
// consumer goroutine that owns the Index's write transaction.
//
// Grounded on the teacher's worker.Pool (worker/pool.go) for the fixed-size
// goroutine fan-out with per-worker failure containment, adapted here onto
// golang.org/x/sync/errgroup (an indirect dependency already pulled in by
// the teacher's own module graph) for the bounded producer set and
// context-aware shutdown; the single-writer fan-in channel is the
// producer/consumer shape the teacher's worker pool does not itself need
// but that §4.5 requires.
package ingest

import (
	"context"
	"sync"

	goccyjson "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/rerupp/fsweather/internal/archive"
	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/logging"
	"github.com/rerupp/fsweather/internal/model"
)

// defaultChannelCapacity bounds the producer-to-consumer channel per §5:
// "channel is unbounded only if memory budget is explicitly lifted,
// otherwise a bounded buffer <= 1024 messages is required."
const defaultChannelCapacity = 1024

// WorkItem names one Entity's Archive to mine.
type WorkItem struct {
	EntityID int64
	Alias    string
	Archive  *archive.Archive
}

// LoadMsg is one mined ArchiveEntry, tagged with its owning entity,
// pushed from a producer onto the shared channel for the consumer.
type LoadMsg struct {
	EntityID int64
	Entry    model.ArchiveEntry
}

// Options configures one Load call.
type Options struct {
	// Threads bounds the number of concurrent producers. Capped at 16 by
	// weatherapp.AdminInit (§6); zero means "caller forgot to set it" and is
	// rejected.
	Threads int
	// UnboundedChannel replaces the 1024-message buffer with one of
	// len(items)+1 messages; the channel stays bounded either way.
	UnboundedChannel bool
	// Progress, if non-nil, is advanced once per work item a producer
	// finishes mining and marked Done when Load's consumer has returned.
	Progress *Waiter
}

// Result summarizes one Load invocation.
type Result struct {
	Inserted int
	// Failed lists entities whose producer errored. Entries such an entity
	// yielded before the error are still committed, and no other entity's
	// rows are rolled back.
	Failed map[string]error
}

// Load mines every item's Archive in parallel and writes all entries into
// backend inside a single transaction-backed pass, per §4.5's topology
// and shutdown rules: a producer error taints only its own entity; the
// consumer commits everything it successfully received.
func Load(ctx context.Context, backend index.Backend, items []WorkItem, opts Options, log *logging.Logger) (Result, error) {
	if opts.Threads <= 0 {
		return Result{}, coreerr.New(coreerr.Invalid, "ingest threads must be > 0")
	}

	capacity := defaultChannelCapacity
	if opts.UnboundedChannel {
		capacity = len(items) + 1
	}
	msgs := make(chan LoadMsg, capacity)

	failed := make(map[string]error)
	var failedMu sync.Mutex

	producers, pctx := errgroup.WithContext(ctx)
	producers.SetLimit(opts.Threads + 1) // the feeder below takes one slot

	work := make(chan WorkItem)
	producers.Go(func() error {
		defer close(work)
		for _, item := range items {
			select {
			case work <- item:
			case <-pctx.Done():
				return pctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < opts.Threads; i++ {
		producers.Go(func() error {
			for item := range work {
				mineGuarded(pctx, item, msgs, log, failed, &failedMu)
				if opts.Progress != nil {
					opts.Progress.Advance()
				}
			}
			return nil
		})
	}

	consumerDone := make(chan consumerResult, 1)
	go runConsumer(backend, msgs, consumerDone)

	producerErr := producers.Wait()
	close(msgs)
	cr := <-consumerDone
	if opts.Progress != nil {
		opts.Progress.Done()
	}

	if cr.err != nil {
		return Result{}, coreerr.Wrap(coreerr.Internal, "ingest commit failed", cr.err)
	}
	if producerErr != nil && len(failed) == 0 {
		// context cancellation or similar: not a per-entity failure
		return Result{}, coreerr.Wrap(coreerr.Internal, "ingest aborted", producerErr)
	}

	return Result{Inserted: cr.inserted, Failed: failed}, nil
}

// mineGuarded mines one item, containing both returned errors and panics
// to this entity so a malformed archive never brings down a producer's
// remaining work or the whole pool (§5's failure-containment rule).
func mineGuarded(ctx context.Context, item WorkItem, out chan<- LoadMsg, log *logging.Logger, failed map[string]error, failedMu *sync.Mutex) {
	defer logging.RecoverPanic(log.With("alias", item.Alias), false)
	completed := false
	defer func() {
		if !completed {
			failedMu.Lock()
			failed[item.Alias] = coreerr.New(coreerr.Internal, "panic while mining "+item.Alias)
			failedMu.Unlock()
		}
	}()
	if err := mineOne(ctx, item, out); err != nil {
		failedMu.Lock()
		failed[item.Alias] = err
		failedMu.Unlock()
		log.WithError(err).Warnf("ingest: entity %s failed", item.Alias)
	}
	completed = true
}

func mineOne(ctx context.Context, item WorkItem, out chan<- LoadMsg) error {
	entries, err := item.Archive.IterRange(nil, false)
	if err != nil {
		return err
	}
	defer entries.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		entry, ok, err := entries.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		select {
		case out <- LoadMsg{EntityID: item.EntityID, Entry: entry}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type consumerResult struct {
	inserted int
	err      error
}

// runConsumer owns the single write transaction: it drains msgs until the
// channel is closed (producers done), then hands every entity's records to
// backend.AddHistoriesBatch as one call so the whole run commits or fails
// together — per §5, a commit failure anywhere leaves the Index in its
// pre-ingest state, not just the failing entity's rows.
func runConsumer(backend index.Backend, msgs <-chan LoadMsg, done chan<- consumerResult) {
	byEntity := map[int64][]model.Record{}
	for m := range msgs {
		byEntity[m.EntityID] = append(byEntity[m.EntityID], entryToRecord(m.EntityID, m.Entry))
	}

	inserted, err := backend.AddHistoriesBatch(byEntity)
	if err != nil {
		done <- consumerResult{err: err}
		return
	}
	done <- consumerResult{inserted: inserted}
}

func entryToRecord(entityID int64, e model.ArchiveEntry) model.Record {
	fields := decodePayload(e.Payload)
	return model.Record{
		EntityID:  entityID,
		Key:       e.Key,
		StoreSize: e.CompressedSize,
		Size:      e.UncompressedSize,
		MTime:     e.ModifiedTime,
		Fields:    fields,
	}
}

// decodePayload pulls the `daily.data[0]` object out of a weather archive
// entry's JSON payload (§6). A payload that fails to parse or carries no
// data element yields a nil field map rather than aborting the whole
// entity's mining pass; the caller still records the entry's size/mtime.
func decodePayload(payload []byte) map[string]interface{} {
	var doc struct {
		Daily struct {
			Data []map[string]interface{} `json:"data"`
		} `json:"daily"`
	}
	if err := goccyjson.Unmarshal(payload, &doc); err != nil {
		return nil
	}
	if len(doc.Daily.Data) == 0 {
		return nil
	}
	return doc.Daily.Data[0]
}

package ingest

import "sync"

// Waiter replaces the spin-on-a-timer progress poll the source used for the
// add-history path (§9 design note) with a condition-variable wait: a
// progress observer blocks in Wait until the next unit of work completes or
// the ingest finishes, instead of polling on an interval.
type Waiter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	done     bool
	advanced int
}

// NewWaiter returns a ready-to-use Waiter.
func NewWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Advance records one completed unit of work and wakes any blocked Wait.
func (w *Waiter) Advance() {
	w.mu.Lock()
	w.advanced++
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Done marks the Waiter finished and wakes every blocked Wait for good.
func (w *Waiter) Done() {
	w.mu.Lock()
	w.done = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Wait blocks until progress has advanced past last, or the Waiter is
// Done, returning the new advance count and whether ingest is finished.
func (w *Waiter) Wait(last int) (count int, finished bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.advanced == last && !w.done {
		w.cond.Wait()
	}
	return w.advanced, w.done
}

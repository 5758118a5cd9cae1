// Package fetch declares the out-of-scope HTTP boundary for the "ah"
// command: retrieving a day's weather history from a third-party
// provider is explicitly a Non-goal of this module, so only the
// interface and a test double live here. A caller who wants live data
// supplies their own HistoryFetcher implementation.
package fetch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rerupp/fsweather/internal/coreerr"
)

// HistoryFetcher retrieves one day's weather payload for a location.
type HistoryFetcher interface {
	Fetch(ctx context.Context, lat, long float64, date time.Time) (json.RawMessage, error)
}

// NoopFetcher always fails with Invalid, naming the missing dependency
// rather than returning fabricated data. It is the default used by
// cmd/weather until a real provider is wired in by the caller.
type NoopFetcher struct{}

func (NoopFetcher) Fetch(_ context.Context, _, _ float64, _ time.Time) (json.RawMessage, error) {
	return nil, coreerr.New(coreerr.Invalid, "no HistoryFetcher configured; ah requires a provider implementation")
}

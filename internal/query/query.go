// Package query implements the read-only Query Layer of §4.6: range,
// summary, count, date, and size queries over the Relational Index's
// Backend, plus the filter-to-SQL pattern translation the registry and
// query layer share. Every operation is case-insensitive by default and
// fails fast on error, per §7's "Query operations fail fast" propagation
// policy.
//
// Grounded on the teacher's db/postgres.go read-path queries (plain SQL
// built from a small set of composable predicates), adapted from a single
// flat table to the multi-table Hybrid/Normalized split behind
// index.Backend.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/manifest"
	"github.com/rerupp/fsweather/internal/model"
)

const dayLayout = "2006-01-02"

// GetEntities returns every registered entity whose name or alias matches
// any of patterns (case-insensitive unless caseSensitive), sorted by
// display name when sorted is true.
func GetEntities(backend index.Backend, patterns []string, caseSensitive, sorted bool) ([]model.Entity, error) {
	all, err := backend.Locations()
	if err != nil {
		return nil, err
	}
	matched := make([]model.Entity, 0, len(all))
	for _, e := range all {
		if manifest.MatchesAny(patterns, caseSensitive, e.Name, e.Alias) {
			matched = append(matched, e)
		}
	}
	if sorted {
		sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	}
	return matched, nil
}

// EntityDates pairs one entity with its reduced date ranges.
type EntityDates struct {
	Entity model.Entity
	Ranges []model.DateRange
}

// HistoryDates returns, for every entity matching patterns, the list of
// DateRange produced by reducing its archive keys to consecutive spans.
func HistoryDates(backend index.Backend, patterns []string, caseSensitive bool) ([]EntityDates, error) {
	entities, err := GetEntities(backend, patterns, caseSensitive, true)
	if err != nil {
		return nil, err
	}
	out := make([]EntityDates, 0, len(entities))
	for _, e := range entities {
		dates, err := backend.HistoryDates(e.ID)
		if err != nil {
			return nil, err
		}
		ranges, err := FromDates(dates)
		if err != nil {
			return nil, err
		}
		out = append(out, EntityDates{Entity: e, Ranges: ranges})
	}
	return out, nil
}

// FromDates reduces a date-ordered (or unordered) set of "YYYY-MM-DD" keys
// into the minimal set of inclusive DateRange spans whose union of
// integer-day spans equals the input set, per §8's date-range-reduction
// property: no overlap, no adjacent ranges left unmerged.
func FromDates(dates []string) ([]model.DateRange, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	parsed := make([]time.Time, len(dates))
	for i, d := range dates {
		t, err := time.Parse(dayLayout, d)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Invalid, "parse date "+d, err)
		}
		parsed[i] = t
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })

	var ranges []model.DateRange
	start, end := parsed[0], parsed[0]
	for _, t := range parsed[1:] {
		if t.Equal(end) {
			continue // duplicate key, already covered
		}
		if t.Equal(end.AddDate(0, 0, 1)) {
			end = t
			continue
		}
		ranges = append(ranges, model.DateRange{Start: start, End: end})
		start, end = t, t
	}
	ranges = append(ranges, model.DateRange{Start: start, End: end})
	return ranges, nil
}

// HistoryCounts returns a map of alias to indexed record count, for every
// registered entity (including ones with zero history rows).
func HistoryCounts(backend index.Backend) (map[string]int, error) {
	entities, err := backend.Locations()
	if err != nil {
		return nil, err
	}
	sums, err := backend.HistorySummaries()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(entities))
	for _, e := range entities {
		out[e.Alias] = sums[e.ID]
	}
	return out, nil
}

// DBSize apportions totalBytes (the index file's on-disk size) across every
// registered entity's alias by its share of the total row count — embedded
// engines do not generally expose per-row byte accounting, so this is an
// estimate, per §4.6.
func DBSize(backend index.Backend, totalBytes int64) (map[string]int64, error) {
	counts, err := HistoryCounts(backend)
	if err != nil {
		return nil, err
	}
	var total int
	for _, c := range counts {
		total += c
	}
	out := make(map[string]int64, len(counts))
	if total == 0 {
		for alias := range counts {
			out[alias] = 0
		}
		return out, nil
	}
	for alias, c := range counts {
		out[alias] = totalBytes * int64(c) / int64(total)
	}
	return out, nil
}

// DailyHistory returns entity's records within rng in ascending key order.
func DailyHistory(backend index.Backend, entityID int64, rng *model.DateRange) ([]model.Record, error) {
	return backend.DailyHistory(entityID, rng)
}

// Summary is one row of a history_summary report.
type Summary struct {
	Entity      model.Entity
	Count       int
	OverallSize int64
	RawSize     int64
	StoreSize   int64
}

// ArchiveSummarizer looks up an archive's aggregate size information by
// alias, satisfied by *archive.Archive wrapped per-entity at the call site.
type ArchiveSummarizer interface {
	Summary(alias string) (model.ArchiveSummary, error)
}

// HistorySummary combines HistoryCounts, DBSize, and each entity's Archive
// summary into one report row per matching entity.
func HistorySummary(backend index.Backend, archives ArchiveSummarizer, indexFileBytes int64, patterns []string, caseSensitive bool) ([]Summary, error) {
	entities, err := GetEntities(backend, patterns, caseSensitive, true)
	if err != nil {
		return nil, err
	}
	counts, err := HistoryCounts(backend)
	if err != nil {
		return nil, err
	}
	sizes, err := DBSize(backend, indexFileBytes)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(entities))
	for _, e := range entities {
		var raw, overall int64
		if archives != nil {
			as, err := archives.Summary(e.Alias)
			if err != nil {
				return nil, err
			}
			raw = as.RawSize
			overall = as.OverallSize
		}
		out = append(out, Summary{
			Entity:      e,
			Count:       counts[e.Alias],
			OverallSize: overall,
			RawSize:     raw,
			StoreSize:   sizes[e.Alias],
		})
	}
	return out, nil
}

// BuildFilterSQL translates patterns into the LIKE-predicate WHERE clause
// described in §4.6: "*" becomes "%"; a lone "*" (or an empty pattern
// list) is an unconditional match and is elided entirely; multiple
// patterns combine with OR across both the name and alias columns.
// matchAll is true when the returned clause should be omitted outright.
func BuildFilterSQL(patterns []string) (clause string, args []interface{}, matchAll bool) {
	if len(patterns) == 0 {
		return "", nil, true
	}
	var preds []string
	for _, p := range patterns {
		if p == "*" {
			return "", nil, true
		}
		like := strings.ReplaceAll(p, "*", "%")
		preds = append(preds, "name LIKE ?", "alias LIKE ?")
		args = append(args, like, like)
	}
	return strings.Join(preds, " OR "), args, false
}

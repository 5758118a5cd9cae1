// Package weatherapp wires the Store Directory, Entity Registry,
// Relational Index, Archive, Ingest Pipeline, and Query Layer together
// into the operations cmd/weather's commands need. It is the business
// logic named in §6: the command layer itself does only flag parsing.
//
// Grounded on the teacher's cli package's pattern of a thin Cobra command
// tree calling into dependency-wired service structs (cli.runServer
// assembling RabbitMQ/CouchDB/JWT services before dispatch), adapted from
// one HTTP server's service set to one CLI invocation's store handles.
package weatherapp

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rerupp/fsweather/internal/archive"
	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/fetch"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/index/hybriddb"
	"github.com/rerupp/fsweather/internal/index/normalizeddb"
	"github.com/rerupp/fsweather/internal/ingest"
	"github.com/rerupp/fsweather/internal/logging"
	"github.com/rerupp/fsweather/internal/manifest"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/query"
	"github.com/rerupp/fsweather/internal/storedir"
)

const indexFileName = "weather.db"

// App bundles one store directory's open handles.
type App struct {
	Store    *storedir.StoreDir
	Conn     *index.Conn
	Backend  index.Backend
	Registry *manifest.Manifest
	Log      *logging.Logger
}

// Open opens an existing store directory at directory in the given
// Deployment mode.
func Open(directory string, deployment model.Deployment, log *logging.Logger) (*App, error) {
	store, err := storedir.Open(directory)
	if err != nil {
		return nil, err
	}
	conn, err := index.Open(store.File(indexFileName).Path(), deployment)
	if err != nil {
		return nil, err
	}
	return &App{
		Store:    store,
		Conn:     conn,
		Backend:  buildBackend(conn, deployment),
		Registry: manifest.Open(store, manifest.Locations),
		Log:      log,
	}, nil
}

func buildBackend(conn *index.Conn, deployment model.Deployment) index.Backend {
	if deployment == model.Normalized {
		return normalizeddb.New(conn)
	}
	return hybriddb.New(conn)
}

// Close releases the index connection.
func (a *App) Close() error {
	return a.Conn.Close()
}

// ListEntities is the "ll" command's business logic.
func (a *App) ListEntities(patterns []string) ([]model.Entity, error) {
	return query.GetEntities(a.Backend, patterns, false, true)
}

// ListHistoryDates is the "lh" command's business logic.
func (a *App) ListHistoryDates(patterns []string) ([]query.EntityDates, error) {
	return query.HistoryDates(a.Backend, patterns, false)
}

type archiveSummarizer struct{ store *storedir.StoreDir }

func (s archiveSummarizer) Summary(alias string) (model.ArchiveSummary, error) {
	arc, err := archive.Open(alias, s.store.Archive(alias))
	if err != nil {
		return model.ArchiveSummary{}, err
	}
	return arc.Summary()
}

// Summaries is the "ls" command's business logic.
func (a *App) Summaries(patterns []string) ([]query.Summary, error) {
	indexBytes, err := a.Store.File(indexFileName).Size()
	if err != nil {
		indexBytes = 0
	}
	return query.HistorySummary(a.Backend, archiveSummarizer{a.Store}, indexBytes, patterns, false)
}

func (a *App) findEntity(alias string) (model.Entity, error) {
	entities, err := query.GetEntities(a.Backend, []string{alias}, true, false)
	if err != nil {
		return model.Entity{}, err
	}
	for _, e := range entities {
		if e.Alias == alias {
			return e, nil
		}
	}
	return model.Entity{}, coreerr.New(coreerr.NotFound, "no such entity: "+alias)
}

// DailyHistory is the "rh" command's business logic.
func (a *App) DailyHistory(alias string, from, thru time.Time) ([]model.Record, error) {
	entity, err := a.findEntity(alias)
	if err != nil {
		return nil, err
	}
	return query.DailyHistory(a.Backend, entity.ID, &model.DateRange{Start: from, End: thru})
}

// AppendHistories is the "ah" command's business logic: fetch each day in
// [from, thru] via fetcher, append the payloads to the entity's archive,
// then reload that entity's index rows from the archive so the two
// stores stay consistent in one pass.
func (a *App) AppendHistories(ctx context.Context, alias string, from, thru time.Time, fetcher fetch.HistoryFetcher) (int, error) {
	entity, err := a.findEntity(alias)
	if err != nil {
		return 0, err
	}
	lat := parseFloatAttr(entity.Attrs[model.AttrLatitude])
	long := parseFloatAttr(entity.Attrs[model.AttrLongitude])

	arc, err := archive.Open(alias, a.Store.Archive(alias))
	if err != nil {
		return 0, err
	}

	var entries []model.ArchiveEntry
	for d := from; !d.After(thru); d = d.AddDate(0, 0, 1) {
		raw, err := fetcher.Fetch(ctx, lat, long, d)
		if err != nil {
			return 0, err
		}
		payload, err := wrapDailyPayload(raw)
		if err != nil {
			return 0, err
		}
		entries = append(entries, model.ArchiveEntry{
			Key: d.Format("2006-01-02"), ModifiedTime: time.Now(), Payload: payload,
		})
	}

	added, err := arc.Append(entries)
	if err != nil {
		return 0, err
	}
	if len(added) == 0 {
		return 0, nil
	}
	if _, err := ingest.Reload(a.Backend, entity.ID, arc); err != nil {
		return 0, err
	}
	return len(added), nil
}

func parseFloatAttr(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func wrapDailyPayload(fields []byte) ([]byte, error) {
	return []byte(`{"daily":{"data":[` + string(fields) + `]}}`), nil
}

// InitOptions configures AdminInit.
type InitOptions struct {
	Drop       bool
	Load       bool
	Threads    int
	Deployment model.Deployment
}

// AdminInit is the "admin init" command's business logic: ensures the
// store directory exists, (re)creates the index schema, and optionally
// mines every registered entity's archive in one bulk ingest pass.
func AdminInit(directory string, opts InitOptions, log *logging.Logger) (ingest.Result, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return ingest.Result{}, coreerr.Wrap(coreerr.Io, "create store directory", err)
	}
	store, err := storedir.Open(directory)
	if err != nil {
		return ingest.Result{}, err
	}
	conn, err := index.Open(store.File(indexFileName).Path(), opts.Deployment)
	if err != nil {
		return ingest.Result{}, err
	}
	defer conn.Close()

	if opts.Drop {
		if err := conn.Drop(false); err != nil {
			return ingest.Result{}, err
		}
	}
	if err := conn.Init(); err != nil {
		return ingest.Result{}, err
	}
	if !opts.Load {
		return ingest.Result{}, nil
	}

	backend := buildBackend(conn, opts.Deployment)
	registry := manifest.Open(store, manifest.Locations)
	entities, err := registry.Load()
	if err != nil {
		return ingest.Result{}, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = 4
	} else if threads > 16 {
		threads = 16
	}

	var items []ingest.WorkItem
	for _, e := range entities {
		id, err := backend.AddEntity(e)
		if err != nil {
			return ingest.Result{}, err
		}
		arc, err := archive.Open(e.Alias, store.Archive(e.Alias))
		if err != nil {
			log.WithError(err).Warnf("init: skipping unreadable archive %s", e.Alias)
			continue
		}
		items = append(items, ingest.WorkItem{EntityID: id, Alias: e.Alias, Archive: arc})
	}

	finish := logging.Timed(log, "admin init load")
	result, err := ingest.Load(context.Background(), backend, items, ingest.Options{Threads: threads}, log)
	finish(&err)
	return result, err
}

// AdminDrop is the "admin drop" command's business logic.
func AdminDrop(directory string, deployment model.Deployment, deleteFile bool) error {
	store, err := storedir.Open(directory)
	if err != nil {
		return err
	}
	conn, err := index.Open(store.File(indexFileName).Path(), deployment)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Drop(deleteFile); err != nil {
		return err
	}
	if deleteFile {
		return store.File(indexFileName).Remove()
	}
	return nil
}

// AdminMigrate is the "admin migrate" command's business logic: copies
// every entity matching patterns, plus its archive, into a fresh or
// existing store directory at into. Unless retain is set, migrated
// entities are removed from the source registry (their archives are
// left in place, matching a conservative "never delete data" default).
func AdminMigrate(directory, into string, create, retain bool, patterns []string) (int, error) {
	source, err := storedir.Open(directory)
	if err != nil {
		return 0, err
	}
	if create {
		if err := os.MkdirAll(into, 0o755); err != nil {
			return 0, coreerr.Wrap(coreerr.Io, "create destination directory", err)
		}
	}
	dest, err := storedir.Open(into)
	if err != nil {
		return 0, err
	}

	srcRegistry := manifest.Open(source, manifest.Locations)
	dstRegistry := manifest.Open(dest, manifest.Locations)

	all, err := srcRegistry.Load()
	if err != nil {
		return 0, err
	}

	var migrated []model.Entity
	remaining := make([]model.Entity, 0, len(all))
	for _, e := range all {
		if manifest.MatchesAny(patterns, false, e.Name, e.Alias) {
			migrated = append(migrated, e)
		} else {
			remaining = append(remaining, e)
		}
	}

	for _, e := range migrated {
		if err := dstRegistry.Add(e); err != nil && !coreerr.Is(err, coreerr.AlreadyExists) {
			return 0, err
		}
		if err := copyArchiveFile(source.Archive(e.Alias), dest.Archive(e.Alias)); err != nil {
			return 0, err
		}
	}

	if !retain && len(migrated) > 0 {
		if err := srcRegistry.Replace(remaining); err != nil {
			return 0, err
		}
	}
	return len(migrated), nil
}

func copyArchiveFile(src, dst *storedir.FileHandle) error {
	if !src.Exists() {
		return nil
	}
	r, err := src.Reader()
	if err != nil {
		return err
	}
	defer r.Close()
	return dst.CopyFrom(r)
}

// AdminReload is the "admin reload" command's business logic: rebuilds
// every matching entity's index rows from its archive from scratch.
func (a *App) AdminReload(patterns []string) (map[string]int, error) {
	entities, err := query.GetEntities(a.Backend, patterns, false, true)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(entities))
	for _, e := range entities {
		arc, err := archive.Open(e.Alias, a.Store.Archive(e.Alias))
		if err != nil {
			return nil, err
		}
		n, err := ingest.Reload(a.Backend, e.ID, arc)
		if err != nil {
			return nil, err
		}
		out[e.Alias] = n
	}
	return out, nil
}

// ShowReport is the "admin show" command's output.
type ShowReport struct {
	Directory  string
	Deployment model.Deployment
	IndexBytes int64
	Entities   int
}

// AdminShow is the "admin show" command's business logic.
func (a *App) AdminShow() (ShowReport, error) {
	entities, err := a.Registry.Load()
	if err != nil {
		return ShowReport{}, err
	}
	indexBytes, _ := a.Store.File(indexFileName).Size()
	return ShowReport{
		Directory:  a.Store.Path(),
		Deployment: a.Conn.Deployment(),
		IndexBytes: indexBytes,
		Entities:   len(entities),
	}, nil
}

// usCitiesSource marks entities bulk-imported by USCitiesLoad so
// USCitiesDelete can remove exactly that subset.
const usCitiesSource = "uscities"

// USCitiesLoad parses a CSV file of "name,alias,latitude,longitude,tz"
// rows and registers each as a location entity, tagged so a later
// USCitiesDelete can remove the whole batch.
func (a *App) USCitiesLoad(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.Io, "open uscities file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, coreerr.Wrap(coreerr.Io, "read uscities file", err)
	}

	added := 0
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		entity := model.Entity{
			Name:  row[0],
			Alias: row[1],
			Attrs: map[string]string{
				model.AttrLatitude:  row[2],
				model.AttrLongitude: row[3],
				model.AttrTZ:        row[4],
				model.AttrSource:    usCitiesSource,
			},
		}
		if err := a.Registry.Add(entity); err != nil {
			if coreerr.Is(err, coreerr.AlreadyExists) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

// USCitiesDelete removes every entity previously loaded by USCitiesLoad.
func (a *App) USCitiesDelete() (int, error) {
	all, err := a.Registry.Load()
	if err != nil {
		return 0, err
	}
	remaining := make([]model.Entity, 0, len(all))
	removed := 0
	for _, e := range all {
		if e.Attrs[model.AttrSource] == usCitiesSource {
			removed++
			continue
		}
		remaining = append(remaining, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, a.Registry.Replace(remaining)
}

// USCitiesInfo reports how many registered entities came from a
// gazetteer load versus the total registered count.
func (a *App) USCitiesInfo() (loaded, total int, err error) {
	all, err := a.Registry.Load()
	if err != nil {
		return 0, 0, err
	}
	for _, e := range all {
		if e.Attrs[model.AttrSource] == usCitiesSource {
			loaded++
		}
	}
	return loaded, len(all), nil
}

// DefaultIndexPath returns the index file path for a store directory,
// exported for callers that need to stat it before opening an App.
func DefaultIndexPath(directory string) string {
	return filepath.Join(directory, indexFileName)
}

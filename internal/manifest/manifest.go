// Package manifest implements the Entity Registry of §4.3: a JSON document
// listing every known Entity (weather location or fsview folder root),
// kept consistent on disk via the write-new/rename/delete-old protocol so
// a crash mid-update never corrupts it.
//
// Grounded on the teacher's config.EnvConfig write discipline and
// generalized from the single-purpose RabbitMQ config loader into a
// general-purpose, crash-safe JSON manifest.
package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/storedir"
)

// Kind selects which Entity flavor a Manifest stores, which in turn
// selects its on-disk file name, top-level JSON key, and validation rules.
type Kind int

const (
	// Locations is the weather manifest: locations.json, key "locations".
	Locations Kind = iota
	// Folders is the fsview manifest: folders.json, key "folders".
	Folders
)

func (k Kind) fileName() string {
	if k == Folders {
		return "folders.json"
	}
	return "locations.json"
}

func (k Kind) recordsKey() string {
	if k == Folders {
		return "folders"
	}
	return "locations"
}

// Manifest is the JSON-backed Entity Registry for one Kind, rooted in a
// store directory.
type Manifest struct {
	store *storedir.StoreDir
	kind  Kind
}

// Open returns a Manifest of the given Kind rooted in store. Opening does
// not read the file; call Load for that.
func Open(store *storedir.StoreDir, kind Kind) *Manifest {
	return &Manifest{store: store, kind: kind}
}

type entryDoc struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Longitude string `json:"longitude,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	TZ        string `json:"tz,omitempty"`
	Pathname  string `json:"pathname,omitempty"`
	Source    string `json:"source,omitempty"`
}

func toEntryDoc(e model.Entity) entryDoc {
	return entryDoc{
		Name:      e.Name,
		Alias:     e.Alias,
		Longitude: e.Attrs[model.AttrLongitude],
		Latitude:  e.Attrs[model.AttrLatitude],
		TZ:        e.Attrs[model.AttrTZ],
		Pathname:  e.Attrs[model.AttrPathname],
		Source:    e.Attrs[model.AttrSource],
	}
}

func fromEntryDoc(d entryDoc) model.Entity {
	attrs := map[string]string{}
	if d.Longitude != "" {
		attrs[model.AttrLongitude] = d.Longitude
	}
	if d.Latitude != "" {
		attrs[model.AttrLatitude] = d.Latitude
	}
	if d.TZ != "" {
		attrs[model.AttrTZ] = d.TZ
	}
	if d.Pathname != "" {
		attrs[model.AttrPathname] = d.Pathname
	}
	if d.Source != "" {
		attrs[model.AttrSource] = d.Source
	}
	return model.Entity{Alias: d.Alias, Name: d.Name, Attrs: attrs}
}

// Load reads every registered Entity. A missing manifest file yields an
// empty list, not an error. A malformed manifest fails with
// RegistryCorrupt. Startup repair prefers the primary file and falls back
// to the ".bck" backup left by an interrupted Add.
func (m *Manifest) Load() ([]model.Entity, error) {
	primary := m.store.File(m.kind.fileName())
	if primary.Exists() {
		return m.loadFrom(primary)
	}
	backup := m.store.File(m.kind.fileName() + backupSuffix)
	if backup.Exists() {
		return m.loadFrom(backup)
	}
	return nil, nil
}

func (m *Manifest) loadFrom(h *storedir.FileHandle) ([]model.Entity, error) {
	f, err := h.Reader()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, coreerr.Wrap(coreerr.RegistryCorrupt, "parse manifest "+h.Path(), err)
	}

	body, ok := raw[m.kind.recordsKey()]
	if !ok {
		return nil, coreerr.New(coreerr.RegistryCorrupt, "manifest missing key "+m.kind.recordsKey())
	}

	var docs []entryDoc
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, coreerr.Wrap(coreerr.RegistryCorrupt, "parse manifest entries", err)
	}

	entities := make([]model.Entity, len(docs))
	for i, d := range docs {
		entities[i] = fromEntryDoc(d)
	}
	return entities, nil
}

const (
	updSuffix = ".upd"
	bckSuffix = ".bck"
	backupSuffix = bckSuffix
)

// Add validates entity, normalizes its alias to lowercase, ensures the
// alias is unique, and persists the updated manifest atomically:
//
//  1. write the new manifest to "<file>.upd"
//  2. rename the current manifest to "<file>.bck"
//  3. rename "<file>.upd" to "<file>"
//  4. remove "<file>.bck"
//
// A crash between any two steps leaves a recoverable pair of files; Load
// prefers the primary name and falls back to the backup.
func (m *Manifest) Add(entity model.Entity) error {
	entity.Alias = strings.ToLower(strings.TrimSpace(entity.Alias))
	if err := m.validate(entity); err != nil {
		return err
	}

	existing, err := m.Load()
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Alias == entity.Alias {
			return coreerr.New(coreerr.AlreadyExists, "alias already registered: "+entity.Alias)
		}
	}
	existing = append(existing, entity)
	sort.Slice(existing, func(i, j int) bool { return existing[i].Name < existing[j].Name })

	docs := make([]entryDoc, len(existing))
	for i, e := range existing {
		docs[i] = toEntryDoc(e)
	}
	body, err := json.Marshal(map[string]interface{}{m.kind.recordsKey(): docs})
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "marshal manifest", err)
	}

	primary := m.store.File(m.kind.fileName())
	upd := m.store.File(m.kind.fileName() + updSuffix)
	bck := m.store.File(m.kind.fileName() + bckSuffix)

	if err := upd.CopyFrom(jsonReader(body)); err != nil {
		return err
	}
	if primary.Exists() {
		if _, err := primary.Rename(m.kind.fileName() + bckSuffix); err != nil {
			return err
		}
	}
	if _, err := upd.Rename(m.kind.fileName()); err != nil {
		return err
	}
	return bck.Remove()
}

// Replace overwrites the manifest with exactly entities, sorted by display
// name, using the same write-new/rename-old/rename-new/remove-backup
// atomicity discipline as Add. Used by bulk administrative operations
// (e.g. removing every gazetteer-imported entity in one pass) that need to
// rewrite the whole list rather than append one validated entry.
func (m *Manifest) Replace(entities []model.Entity) error {
	sorted := append([]model.Entity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	docs := make([]entryDoc, len(sorted))
	for i, e := range sorted {
		docs[i] = toEntryDoc(e)
	}
	body, err := json.Marshal(map[string]interface{}{m.kind.recordsKey(): docs})
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "marshal manifest", err)
	}

	primary := m.store.File(m.kind.fileName())
	upd := m.store.File(m.kind.fileName() + updSuffix)
	bck := m.store.File(m.kind.fileName() + bckSuffix)

	if err := upd.CopyFrom(jsonReader(body)); err != nil {
		return err
	}
	if primary.Exists() {
		if _, err := primary.Rename(m.kind.fileName() + bckSuffix); err != nil {
			return err
		}
	}
	if _, err := upd.Rename(m.kind.fileName()); err != nil {
		return err
	}
	return bck.Remove()
}

func jsonReader(b []byte) *strings.Reader {
	return strings.NewReader(string(b))
}

// knownTimezones lists a conservative built-in sample used only to offer a
// case-insensitive hint; validity itself is determined by time.LoadLocation
// against the system/embedded IANA tzdata, per the "Timezone database
// scope" design note.
var knownTimezones = []string{
	"America/Los_Angeles", "America/Denver", "America/Chicago", "America/New_York",
	"America/Anchorage", "Pacific/Honolulu", "Europe/London", "Europe/Berlin",
	"Europe/Paris", "Asia/Tokyo", "Asia/Shanghai", "Australia/Sydney", "UTC",
}

func (m *Manifest) validate(e model.Entity) error {
	if strings.TrimSpace(e.Name) == "" {
		return coreerr.New(coreerr.Invalid, "name must not be empty")
	}
	if e.Alias == "" {
		return coreerr.New(coreerr.Invalid, "alias must not be empty")
	}

	if m.kind == Locations {
		if err := validateCoordinate(e.Attrs[model.AttrLongitude], -180, 180, "longitude"); err != nil {
			return err
		}
		if err := validateCoordinate(e.Attrs[model.AttrLatitude], -90, 90, "latitude"); err != nil {
			return err
		}
		if err := validateTimezone(e.Attrs[model.AttrTZ]); err != nil {
			return err
		}
	} else {
		if strings.TrimSpace(e.Attrs[model.AttrPathname]) == "" {
			return coreerr.New(coreerr.Invalid, "pathname must not be empty")
		}
	}
	return nil
}

func validateCoordinate(raw string, lo, hi float64, field string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return coreerr.New(coreerr.Invalid, field+" is not a finite number: "+raw)
	}
	if v < lo || v > hi {
		return coreerr.New(coreerr.Invalid, fmt.Sprintf("%s %.6f out of range [%.0f,%.0f]", field, v, lo, hi))
	}
	return nil
}

func validateTimezone(name string) error {
	if name == "" {
		return coreerr.New(coreerr.Invalid, "tz must not be empty")
	}
	if _, err := time.LoadLocation(name); err == nil {
		return nil
	}
	for _, known := range knownTimezones {
		if strings.EqualFold(known, name) {
			return coreerr.New(coreerr.Invalid, fmt.Sprintf("tz %q not recognized; did you mean %q?", name, known))
		}
	}
	return coreerr.New(coreerr.Invalid, "tz not recognized: "+name)
}

// Iter filters entities against patterns (glob-like: "*" prefix/suffix/
// contains/bare-exact, matched against name OR alias). An empty pattern
// list matches everything. caseSensitive controls comparison; results are
// always sorted by display name when sorted is true.
func (m *Manifest) Iter(patterns []string, caseSensitive, sorted bool) ([]model.Entity, error) {
	entities, err := m.Load()
	if err != nil {
		return nil, err
	}

	matched := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if MatchesAny(patterns, caseSensitive, e.Name, e.Alias) {
			matched = append(matched, e)
		}
	}
	if sorted {
		sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	}
	return matched, nil
}

// MatchesAny reports whether candidate1 or candidate2 matches any of
// patterns, using the registry/query glob grammar ("*" prefix/suffix/
// contains/bare exact). An empty pattern list always matches.
func MatchesAny(patterns []string, caseSensitive bool, candidates ...string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		for _, c := range candidates {
			pat, cand := p, c
			if !caseSensitive {
				pat, cand = strings.ToLower(pat), strings.ToLower(cand)
			}
			if ok, _ := doublestar.Match(pat, cand); ok {
				return true
			}
		}
	}
	return false
}

// Package model defines the data types shared by the store directory,
// archive, registry, index, ingest, query, hierarchy and duplicate-analysis
// packages: entities, archive entries, indexed records, and the fsview
// filesystem metadata triad (folder/file/problem).
package model

import "time"

// Deployment selects which Index backend is used: Hybrid keeps payload
// fields only in the archive, Normalized flattens them into the index too.
type Deployment string

const (
	Hybrid     Deployment = "hybrid"
	Normalized Deployment = "normalized"
)

// Entity is a weather location or an fsview folder root: identity is the
// Alias (unique, lowercase), Name is the display name. Attrs carries the
// kind-specific fields (coordinates/timezone for weather, pathname for
// fsview) so the registry and index can stay agnostic of which kind they
// are persisting.
type Entity struct {
	ID    int64
	Alias string
	Name  string
	Attrs map[string]string
}

// LocationAttrs are the attribute keys used by weather Entities.
const (
	AttrLongitude = "longitude"
	AttrLatitude  = "latitude"
	AttrTZ        = "tz"
	AttrPathname  = "pathname" // fsview folder roots
	AttrSource    = "source"   // e.g. "uscities" for gazetteer-loaded locations
)

// ArchiveEntry is one (key, metadata, payload) triple stored in an Entity's
// archive. Key is a calendar date (weather, "2024-01-15") or a relative
// path (fsview).
type ArchiveEntry struct {
	Key              string
	CompressedSize   int64
	UncompressedSize int64
	ModifiedTime     time.Time
	Payload          []byte // opaque JSON document
}

// ArchiveSummary reports aggregate size information for one archive.
type ArchiveSummary struct {
	Count           int
	CompressedSize  int64 // sum of per-entry stored sizes
	RawSize         int64 // sum of per-entry uncompressed sizes
	OverallSize     int64 // archive file size on disk
}

// Record is an indexed row: an ArchiveEntry mirrored into the relational
// index plus a parent Entity reference.
type Record struct {
	ID       int64
	EntityID int64
	Key      string
	StoreSize int64
	Size      int64
	MTime     time.Time
	Fields    map[string]interface{} // typed payload fields (Normalized mode only)
}

// DateRange is an inclusive [Start, End] span over calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// FolderMeta describes one filesystem folder row (fsview).
type FolderMeta struct {
	ID       int64
	ParentID int64 // 0 denotes root
	Pathname string
	Name     string
	Size     int64
	Created  time.Time
	Modified time.Time
	Children map[string]*Node // name -> child, populated by the hierarchy builder
	// ChildOrder lists Children's keys in archive/walk insertion order —
	// the order the hierarchy builder attached them in, not alphabetical.
	ChildOrder []string
}

// FileMeta describes one filesystem file row (fsview).
type FileMeta struct {
	ID        int64
	ParentID  int64
	Pathname  string
	Name      string
	Size      int64
	Created   time.Time
	Modified  time.Time
	IsSymlink bool
}

// ProblemMeta records a filesystem entry that could not be cataloged.
type ProblemMeta struct {
	ID          int64
	ParentID    int64
	Pathname    string
	Description string
}

// NodeKind tags which variant a Node wraps, avoiding a subtype hierarchy
// per the "Deep nesting" design note.
type NodeKind int

const (
	NodeFolder NodeKind = iota
	NodeFile
	NodeProblem
)

// Node is a tagged union over Folder|File|Problem, used at the hierarchy
// and query boundary.
type Node struct {
	Kind    NodeKind
	Folder  *FolderMeta
	File    *FileMeta
	Problem *ProblemMeta
}

// DuplicateGroup is a set of record ids sharing a content fingerprint.
type DuplicateGroup struct {
	GroupID     string
	MemberIDs   []int64
	Fingerprint string
}

// FolderGroup is a set of folders whose child-fingerprint multisets match.
type FolderGroup struct {
	GroupID string
	Folders []*FolderMeta
}

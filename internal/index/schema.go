// Package index implements the Relational Index of §4.4: an embedded SQL
// store, one file inside the StoreDir, mirroring the Entity Registry and
// (depending on Deployment) the Archive payloads.
//
// Grounded on the teacher's db package: a single *gorm.DB handle behind a
// small connection-factory function, versioned schema DDL run through
// AutoMigrate, and every multi-row mutation wrapped in an explicit
// transaction.
package index

import "time"

// LocationRow is the `locations` table: one row per registered weather
// Entity.
type LocationRow struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Alias     string `gorm:"uniqueIndex;not null"`
	Longitude string
	Latitude  string
	TZ        string
}

func (LocationRow) TableName() string { return "locations" }

// FolderRow is the `folders` table: one row per fsview folder (including
// registered roots, where ParentID is 0).
type FolderRow struct {
	ID       int64  `gorm:"primaryKey"`
	ParentID int64  `gorm:"index;not null"`
	Pathname string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
	Size     int64
	Created  time.Time
	Modified time.Time
}

func (FolderRow) TableName() string { return "folders" }

// MetadataRow is the `metadata` table: one row per ArchiveEntry, present
// in both deployment modes. UNIQUE(lid, date) enforces archive-key
// uniqueness at the index layer too.
type MetadataRow struct {
	ID        int64 `gorm:"primaryKey"`
	LID       int64 `gorm:"uniqueIndex:idx_lid_date;not null"`
	Date      string `gorm:"uniqueIndex:idx_lid_date;not null"` // YYYY-MM-DD
	StoreSize int64
	Size      int64
	MTime     time.Time
}

func (MetadataRow) TableName() string { return "metadata" }

// HistoryRow is the `history` table: present only in Normalized
// deployment, one row per MetadataRow, carrying the flattened DarkSky-era
// weather fields. Pointer fields are nullable (absent in the source
// payload).
type HistoryRow struct {
	MID                int64 `gorm:"primaryKey"`
	TemperatureHigh    *float64
	TemperatureLow     *float64
	Humidity           *float64
	DewPoint           *float64
	WindSpeed          *float64
	WindBearing        *float64
	WindGust           *float64
	Pressure           *float64
	UvIndex            *float64
	CloudCover         *float64
	Visibility         *float64
	SunriseTime        *int64 // epoch seconds
	SunsetTime         *int64
	MoonPhase          *float64
	Summary            *string
	Icon               *string
	PrecipType         *string
	PrecipIntensity    *float64
	PrecipProbability  *float64
}

func (HistoryRow) TableName() string { return "history" }

// FileRow is the `files` table (fsview only): one row per indexed file.
type FileRow struct {
	ID        int64 `gorm:"primaryKey"`
	ParentID  int64 `gorm:"index;not null"`
	Pathname  string `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"not null"`
	Size      int64
	Created   time.Time
	Modified  time.Time
	IsSymlink bool
	Checksum  string `gorm:"index"` // content fingerprint, see internal/dup
}

func (FileRow) TableName() string { return "files" }

// ProblemRow is the `problems` table (fsview only): entries that could not
// be cataloged during a walk.
type ProblemRow struct {
	ID          int64 `gorm:"primaryKey"`
	ParentID    int64 `gorm:"index;not null"`
	Pathname    string `gorm:"not null"`
	Description string
}

func (ProblemRow) TableName() string { return "problems" }

// FileDupRow is the `filedups` table: a materialized view of duplicate
// groupings, rebuilt by internal/dup whenever requested rather than kept
// live-updated on every ingest.
type FileDupRow struct {
	ID      int64 `gorm:"primaryKey"`
	GroupID string `gorm:"index;not null"`
	FileID  int64  `gorm:"index;not null"`
}

func (FileDupRow) TableName() string { return "filedups" }

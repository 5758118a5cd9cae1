package index

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/model"
)

// allTables lists every model this package migrates, in a safe creation
// order (tables referenced by a foreign key come first).
var allTables = []interface{}{
	&LocationRow{}, &FolderRow{},
	&MetadataRow{}, &HistoryRow{},
	&FileRow{}, &ProblemRow{}, &FileDupRow{},
}

// Conn wraps the embedded database connection. It is not safe for
// concurrent writers; the Ingest Pipeline (§4.5) funnels every write
// through one consumer goroutine that owns the Conn returned by Open.
type Conn struct {
	db   *gorm.DB
	kind model.Deployment
}

// Open establishes a connection to the SQLite-backed index file at path,
// creating it if absent. Matches the teacher's db.PGInfo connection-pool
// discipline, scaled down for an embedded single-file engine: SQLite
// itself serializes writers, so the pool is capped at one connection.
func Open(path string, kind model.Deployment) (*Conn, error) {
	return open(sqlite.Open(path), kind)
}

var memDBSeq int64

// OpenMemory opens a throwaway in-memory index, used by tests and by
// admin tooling that wants schema validation without touching disk. Each
// call gets its own named in-memory database so concurrent tests never
// share state despite SQLite's shared-cache mode.
func OpenMemory(kind model.Deployment) (*Conn, error) {
	name := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", atomic.AddInt64(&memDBSeq, 1))
	return open(sqlite.Open(name), kind)
}

func open(dialector gorm.Dialector, kind model.Deployment) (*Conn, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "open index", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, "underlying sql.DB", err)
	}
	// SQLite serializes writers regardless of pool size; a single
	// connection avoids SQLITE_BUSY races between goroutines in this
	// process instead of relying on busy-timeout retries.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Conn{db: db, kind: kind}, nil
}

// Init runs schema DDL for every table the Deployment requires via
// AutoMigrate. HistoryRow is included only for Normalized deployments.
func (c *Conn) Init() error {
	tables := []interface{}{&LocationRow{}, &FolderRow{}, &MetadataRow{}, &FileRow{}, &ProblemRow{}, &FileDupRow{}}
	if c.kind == model.Normalized {
		tables = append(tables, &HistoryRow{})
	}
	if err := c.db.AutoMigrate(tables...); err != nil {
		return coreerr.Wrap(coreerr.Internal, "init schema", err)
	}
	return nil
}

// Drop removes every table this package owns. When reclaimSpace is true
// it runs VACUUM afterward to return freed pages to the filesystem.
func (c *Conn) Drop(reclaimSpace bool) error {
	for i := len(allTables) - 1; i >= 0; i-- {
		if err := c.db.Migrator().DropTable(allTables[i]); err != nil {
			return coreerr.Wrap(coreerr.Internal, "drop schema", err)
		}
	}
	if reclaimSpace {
		if err := c.db.Exec("VACUUM").Error; err != nil {
			return coreerr.Wrap(coreerr.Io, "vacuum", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (c *Conn) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return coreerr.Wrap(coreerr.Io, "underlying sql.DB", err)
	}
	return sqlDB.Close()
}

// Deployment reports which mode this Conn was opened with.
func (c *Conn) Deployment() model.Deployment {
	return c.kind
}

// Transaction runs fn inside a single write transaction, matching §4.4's
// requirement that every multi-row mutation be transactional. A panic or
// returned error rolls back; otherwise the transaction commits.
func (c *Conn) Transaction(fn func(tx *gorm.DB) error) error {
	return c.db.Transaction(fn)
}

// DB exposes the underlying *gorm.DB for read-only queries built by
// internal/query. Writers must go through Transaction.
func (c *Conn) DB() *gorm.DB {
	return c.db
}

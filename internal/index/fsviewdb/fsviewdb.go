// Package fsviewdb is the fsview-specific relational writer: folders,
// files, and problems are written directly from a filesystem walk
// (internal/fswalk), not mined from an Archive, so fsview does not go
// through index.Backend's Hybrid/Normalized dispatch — that split exists
// only for the weather domain's archive-backed ingest. fsviewdb still
// shares internal/index's Conn, schema, and GORM/transaction conventions.
package fsviewdb

import (
	"sort"

	"gorm.io/gorm"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/dup"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

// Backend is the fsview writer/reader over the shared Relational Index.
type Backend struct {
	conn *index.Conn
}

// New wraps conn, opened with any Deployment (fsview does not use it).
func New(conn *index.Conn) *Backend {
	return &Backend{conn: conn}
}

func toFolderRow(f model.FolderMeta) index.FolderRow {
	return index.FolderRow{
		ID: f.ID, ParentID: f.ParentID, Pathname: f.Pathname, Name: f.Name,
		Size: f.Size, Created: f.Created, Modified: f.Modified,
	}
}

func fromFolderRow(r index.FolderRow) model.FolderMeta {
	return model.FolderMeta{
		ID: r.ID, ParentID: r.ParentID, Pathname: r.Pathname, Name: r.Name,
		Size: r.Size, Created: r.Created, Modified: r.Modified,
	}
}

// AddFolder inserts one folder row (ParentID 0 for a registered root) and
// returns its assigned id.
func (b *Backend) AddFolder(f model.FolderMeta) (int64, error) {
	row := toFolderRow(f)
	if err := b.conn.DB().Create(&row).Error; err != nil {
		return 0, coreerr.Wrap(coreerr.Internal, "add folder "+f.Pathname, err)
	}
	return row.ID, nil
}

// AddFolders inserts every folder in a single transaction, in slice order
// (callers pass them in depth-first walk order so Folders() below replays
// the same order the Hierarchy Builder expects).
func (b *Backend) AddFolders(folders []model.FolderMeta) ([]int64, error) {
	ids := make([]int64, len(folders))
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		for i, f := range folders {
			row := toFolderRow(f)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			ids[i] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "add folders", err)
	}
	return ids, nil
}

// FileInput is one walked file plus the fingerprint computed over its
// content, ready for persistence.
type FileInput struct {
	Meta     model.FileMeta
	Checksum string
}

// AddFiles inserts every file row in a single transaction.
func (b *Backend) AddFiles(files []FileInput) ([]int64, error) {
	ids := make([]int64, len(files))
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		for i, f := range files {
			row := index.FileRow{
				ID: f.Meta.ID, ParentID: f.Meta.ParentID, Pathname: f.Meta.Pathname, Name: f.Meta.Name,
				Size: f.Meta.Size, Created: f.Meta.Created, Modified: f.Meta.Modified,
				IsSymlink: f.Meta.IsSymlink, Checksum: f.Checksum,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			ids[i] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "add files", err)
	}
	return ids, nil
}

// AddProblems inserts every problem row in a single transaction.
func (b *Backend) AddProblems(problems []model.ProblemMeta) error {
	err := b.conn.Transaction(func(tx *gorm.DB) error {
		for _, p := range problems {
			row := index.ProblemRow{ParentID: p.ParentID, Pathname: p.Pathname, Description: p.Description}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return coreerr.Wrap(coreerr.Internal, "add problems", err)
	}
	return nil
}

// Folders returns every folder row ordered by id ascending, which matches
// insertion (depth-first walk) order and is the input order the Hierarchy
// Builder (§4.7) requires.
func (b *Backend) Folders() ([]model.FolderMeta, error) {
	var rows []index.FolderRow
	if err := b.conn.DB().Order("id ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "folders", err)
	}
	out := make([]model.FolderMeta, len(rows))
	for i, r := range rows {
		out[i] = fromFolderRow(r)
	}
	return out, nil
}

// Files returns every file row ordered by id ascending.
func (b *Backend) Files() ([]model.FileMeta, error) {
	var rows []index.FileRow
	if err := b.conn.DB().Order("id ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "files", err)
	}
	out := make([]model.FileMeta, len(rows))
	for i, r := range rows {
		out[i] = model.FileMeta{
			ID: r.ID, ParentID: r.ParentID, Pathname: r.Pathname, Name: r.Name,
			Size: r.Size, Created: r.Created, Modified: r.Modified, IsSymlink: r.IsSymlink,
		}
	}
	return out, nil
}

// FilesByParent returns only the direct children of parentID, used by the
// folder-level duplicate analyzer to build a folder's child-fingerprint
// multiset without recursing into subfolders.
func (b *Backend) FilesByParent(parentID int64) ([]index.FileRow, error) {
	var rows []index.FileRow
	if err := b.conn.DB().Where("parent_id = ?", parentID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "files by parent", err)
	}
	return rows, nil
}

// Problems returns every problem row.
func (b *Backend) Problems() ([]model.ProblemMeta, error) {
	var rows []index.ProblemRow
	if err := b.conn.DB().Order("id ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "problems", err)
	}
	out := make([]model.ProblemMeta, len(rows))
	for i, r := range rows {
		out[i] = model.ProblemMeta{ID: r.ID, ParentID: r.ParentID, Pathname: r.Pathname, Description: r.Description}
	}
	return out, nil
}

// RebuildFileDups recomputes the `filedups` materialized view from the
// current `files` rows' checksums and replaces its contents in one
// transaction, per §4.8's "reload a materialized view" file-level rule.
func (b *Backend) RebuildFileDups() ([]model.DuplicateGroup, error) {
	var rows []index.FileRow
	if err := b.conn.DB().Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "rebuild filedups", err)
	}

	items := make([]dup.Keyed, 0, len(rows))
	for _, r := range rows {
		if r.Checksum == "" {
			continue
		}
		items = append(items, dup.Keyed{ID: r.ID, Fingerprint: r.Checksum})
	}
	groups := dup.GroupDuplicates(items)

	err := b.conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&index.FileDupRow{}).Error; err != nil {
			return err
		}
		for _, g := range groups {
			for _, id := range g.MemberIDs {
				if err := tx.Create(&index.FileDupRow{GroupID: g.GroupID, FileID: id}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "rebuild filedups", err)
	}
	return groups, nil
}

// FileDupGroups reads the materialized view built by RebuildFileDups.
func (b *Backend) FileDupGroups() ([]model.DuplicateGroup, error) {
	var rows []index.FileDupRow
	if err := b.conn.DB().Order("group_id ASC, file_id ASC").Find(&rows).Error; err != nil {
		return nil, coreerr.Wrap(coreerr.Internal, "file dup groups", err)
	}
	byGroup := map[string][]int64{}
	order := []string{}
	for _, r := range rows {
		if _, seen := byGroup[r.GroupID]; !seen {
			order = append(order, r.GroupID)
		}
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r.FileID)
	}
	sort.Strings(order)
	out := make([]model.DuplicateGroup, 0, len(order))
	for _, gid := range order {
		out = append(out, model.DuplicateGroup{GroupID: gid, MemberIDs: byGroup[gid]})
	}
	return out, nil
}

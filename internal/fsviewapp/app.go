// Package fsviewapp wires the Store Directory, Entity Registry,
// Relational Index (via fsviewdb), Metadata Capture, Hierarchy Builder,
// and Duplicate Analyzer together into the operations cmd/fsview's
// commands need.
//
// Grounded on the teacher's cli package's dependency-wired service struct
// pattern, same as internal/weatherapp, applied to fsview's direct
// filesystem-to-index write path instead of the weather domain's
// archive-backed one.
package fsviewapp

import (
	"os"

	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/dup"
	"github.com/rerupp/fsweather/internal/fswalk"
	"github.com/rerupp/fsweather/internal/hierarchy"
	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/index/fsviewdb"
	"github.com/rerupp/fsweather/internal/manifest"
	"github.com/rerupp/fsweather/internal/model"
	"github.com/rerupp/fsweather/internal/storedir"
)

const indexFileName = "fsview.db"

// App bundles one fsview store directory's open handles.
type App struct {
	Store    *storedir.StoreDir
	Conn     *index.Conn
	Backend  *fsviewdb.Backend
	Registry *manifest.Manifest
}

// Open opens an existing fsview store directory.
func Open(directory string) (*App, error) {
	store, err := storedir.Open(directory)
	if err != nil {
		return nil, err
	}
	conn, err := index.Open(store.File(indexFileName).Path(), model.Hybrid)
	if err != nil {
		return nil, err
	}
	if err := conn.Init(); err != nil {
		conn.Close()
		return nil, err
	}
	return &App{
		Store:    store,
		Conn:     conn,
		Backend:  fsviewdb.New(conn),
		Registry: manifest.Open(store, manifest.Folders),
	}, nil
}

// Close releases the index connection.
func (a *App) Close() error {
	return a.Conn.Close()
}

// Scan is the "scan" command's business logic: registers root as a
// folder entity named alias, walks its filesystem tree, and persists the
// full Folder/File/Problem set plus the file-level duplicate view. A
// rescan always starts from an empty schema, since fsviewdb has no
// incremental-update path (unlike the weather domain's archive Append).
func Scan(directory, root, alias string, opts fswalk.Options) (fswalk.Result, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fswalk.Result{}, coreerr.Wrap(coreerr.Io, "create store directory", err)
	}
	store, err := storedir.Open(directory)
	if err != nil {
		return fswalk.Result{}, err
	}
	conn, err := index.Open(store.File(indexFileName).Path(), model.Hybrid)
	if err != nil {
		return fswalk.Result{}, err
	}
	defer conn.Close()

	if err := conn.Drop(false); err != nil {
		return fswalk.Result{}, err
	}
	if err := conn.Init(); err != nil {
		return fswalk.Result{}, err
	}

	result, err := fswalk.Walk(root, alias, opts)
	if err != nil {
		return fswalk.Result{}, err
	}

	backend := fsviewdb.New(conn)
	if _, err := backend.AddFolders(result.Folders); err != nil {
		return fswalk.Result{}, err
	}
	inputs := make([]fsviewdb.FileInput, len(result.Files))
	for i, f := range result.Files {
		inputs[i] = fsviewdb.FileInput{Meta: f, Checksum: result.Checksums[i]}
	}
	if _, err := backend.AddFiles(inputs); err != nil {
		return fswalk.Result{}, err
	}
	if len(result.Problems) > 0 {
		if err := backend.AddProblems(result.Problems); err != nil {
			return fswalk.Result{}, err
		}
	}
	if _, err := backend.RebuildFileDups(); err != nil {
		return fswalk.Result{}, err
	}

	registry := manifest.Open(store, manifest.Folders)
	_ = registry.Add(model.Entity{
		Name: alias, Alias: alias,
		Attrs: map[string]string{model.AttrPathname: root},
	})

	return result, nil
}

// ListRoots is the "ll" command's business logic: lists every root folder
// row (ParentID 0) in the index whose name matches patterns. The index is
// replaced on every Scan, so this is the last scan's root; roots registered
// by earlier scans are not listed.
func (a *App) ListRoots(patterns []string) ([]model.FolderMeta, error) {
	folders, err := a.Backend.Folders()
	if err != nil {
		return nil, err
	}
	var roots []model.FolderMeta
	for _, f := range folders {
		if f.ParentID == 0 && manifest.MatchesAny(patterns, false, f.Name) {
			roots = append(roots, f)
		}
	}
	return roots, nil
}

// DupReport is one file-level duplicate group resolved to pathnames.
type DupReport struct {
	GroupID   string
	Pathnames []string
	WastedBytes int64
}

// Dups is the "dups" command's business logic: rebuilds and reports the
// file-level duplicate groups, plus folder-level matches.
func (a *App) Dups() ([]DupReport, []model.FolderGroup, error) {
	groups, err := a.Backend.RebuildFileDups()
	if err != nil {
		return nil, nil, err
	}
	files, err := a.Backend.Files()
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]model.FileMeta, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	reports := make([]DupReport, 0, len(groups))
	for _, g := range groups {
		paths := make([]string, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			paths = append(paths, byID[id].Pathname)
		}
		summary := dup.SummarizeFileGroups([]model.DuplicateGroup{g}, func(id int64) int64 { return byID[id].Size })
		reports = append(reports, DupReport{GroupID: g.GroupID, Pathnames: paths, WastedBytes: summary.TotalWastedBytes})
	}

	folderGroups, err := a.folderDups()
	if err != nil {
		return nil, nil, err
	}
	return reports, folderGroups, nil
}

func (a *App) folderDups() ([]model.FolderGroup, error) {
	folders, err := a.Backend.Folders()
	if err != nil {
		return nil, err
	}
	children := make([]dup.FolderChildren, 0, len(folders))
	for i := range folders {
		files, err := a.Backend.FilesByParent(folders[i].ID)
		if err != nil {
			return nil, err
		}
		fps := make([]string, 0, len(files))
		for _, f := range files {
			if f.Checksum != "" {
				fps = append(fps, f.Checksum)
			}
		}
		children = append(children, dup.FolderChildren{Folder: &folders[i], ChildFingerprints: fps})
	}
	groups, _ := dup.MatchFolders(children)
	return groups, nil
}

// Tree is the "tree" command's business logic: reconstructs the full
// folder/file/problem forest via the Hierarchy Builder, then grafts files
// and problems into each folder's Children map.
func (a *App) Tree() ([]*model.FolderMeta, error) {
	folders, err := a.Backend.Folders()
	if err != nil {
		return nil, err
	}
	files, err := a.Backend.Files()
	if err != nil {
		return nil, err
	}
	problems, err := a.Backend.Problems()
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*model.FolderMeta, len(folders))
	builder := hierarchy.New()
	for i := range folders {
		row := folders[i]
		if err := builder.Push(&row); err != nil {
			return nil, err
		}
		byID[row.ID] = &row
	}
	roots := builder.Build()

	for _, f := range files {
		file := f
		if parent, ok := byID[f.ParentID]; ok {
			parent.Children[f.Name] = &model.Node{Kind: model.NodeFile, File: &file}
			parent.ChildOrder = append(parent.ChildOrder, f.Name)
		}
	}
	for _, p := range problems {
		problem := p
		if parent, ok := byID[p.ParentID]; ok {
			parent.Children[p.Pathname] = &model.Node{Kind: model.NodeProblem, Problem: &problem}
			parent.ChildOrder = append(parent.ChildOrder, p.Pathname)
		}
	}
	return roots, nil
}

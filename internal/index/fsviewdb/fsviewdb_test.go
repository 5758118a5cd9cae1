package fsviewdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/index"
	"github.com/rerupp/fsweather/internal/model"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	conn, err := index.OpenMemory(model.Hybrid)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Init())
	return New(conn)
}

func TestAddFoldersPreservesOrder(t *testing.T) {
	b := newBackend(t)
	rootID, err := b.AddFolder(model.FolderMeta{ParentID: 0, Name: "root", Pathname: "/root"})
	require.NoError(t, err)

	_, err = b.AddFolders([]model.FolderMeta{
		{ParentID: rootID, Name: "a", Pathname: "/root/a"},
		{ParentID: rootID, Name: "b", Pathname: "/root/b"},
	})
	require.NoError(t, err)

	folders, err := b.Folders()
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "root", folders[0].Name)
	assert.Equal(t, "a", folders[1].Name)
	assert.Equal(t, "b", folders[2].Name)
}

func TestRebuildFileDupsGroupsByChecksum(t *testing.T) {
	b := newBackend(t)
	rootID, err := b.AddFolder(model.FolderMeta{ParentID: 0, Name: "root", Pathname: "/root"})
	require.NoError(t, err)

	_, err = b.AddFiles([]FileInput{
		{Meta: model.FileMeta{ParentID: rootID, Name: "a.txt", Pathname: "/root/a.txt"}, Checksum: "cafe"},
		{Meta: model.FileMeta{ParentID: rootID, Name: "b.txt", Pathname: "/root/b.txt"}, Checksum: "cafe"},
		{Meta: model.FileMeta{ParentID: rootID, Name: "c.txt", Pathname: "/root/c.txt"}, Checksum: "beef"},
	})
	require.NoError(t, err)

	groups, err := b.RebuildFileDups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].MemberIDs, 2)

	reread, err := b.FileDupGroups()
	require.NoError(t, err)
	require.Len(t, reread, 1)
	assert.Len(t, reread[0].MemberIDs, 2)
}

func TestAddProblems(t *testing.T) {
	b := newBackend(t)
	err := b.AddProblems([]model.ProblemMeta{
		{ParentID: 0, Pathname: "/root/bad", Description: "permission denied"},
	})
	require.NoError(t, err)

	problems, err := b.Problems()
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "permission denied", problems[0].Description)
}

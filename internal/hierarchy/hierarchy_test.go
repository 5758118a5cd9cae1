package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/fsweather/internal/model"
)

func row(id, parent int64, name string) *model.FolderMeta {
	return &model.FolderMeta{ID: id, ParentID: parent, Name: name}
}

// TestBuildSingleTree exercises §8 scenario 6 verbatim: one root with a
// nested child and a sibling.
func TestBuildSingleTree(t *testing.T) {
	b := New()
	rows := []*model.FolderMeta{
		row(1, 0, "root"),
		row(2, 1, "a"),
		row(3, 2, "aa"),
		row(4, 1, "b"),
	}
	for _, r := range rows {
		require.NoError(t, b.Push(r))
	}
	roots := b.Build()

	require.Len(t, roots, 1)
	root := roots[0]
	assert.Equal(t, "root", root.Name)
	require.Contains(t, root.Children, "a")
	require.Contains(t, root.Children, "b")

	a := root.Children["a"].Folder
	require.Contains(t, a.Children, "aa")
	assert.Empty(t, a.Children["aa"].Folder.Children)
}

// TestBuildRecordsChildInsertionOrder ensures ChildOrder reflects the order
// rows were pushed, not map iteration order, per §4.7's "insertion-order
// traversal" rule.
func TestBuildRecordsChildInsertionOrder(t *testing.T) {
	b := New()
	rows := []*model.FolderMeta{
		row(1, 0, "root"),
		row(2, 1, "b"),
		row(3, 1, "a"),
		row(4, 1, "c"),
	}
	for _, r := range rows {
		require.NoError(t, b.Push(r))
	}
	roots := b.Build()

	require.Len(t, roots, 1)
	assert.Equal(t, []string{"b", "a", "c"}, roots[0].ChildOrder)
}

func TestBuildMultipleRoots(t *testing.T) {
	b := New()
	rows := []*model.FolderMeta{
		row(1, 0, "root1"),
		row(2, 1, "child"),
		row(3, 0, "root2"),
	}
	for _, r := range rows {
		require.NoError(t, b.Push(r))
	}
	roots := b.Build()
	require.Len(t, roots, 2)
	assert.Equal(t, "root1", roots[0].Name)
	assert.Equal(t, "root2", roots[1].Name)
	assert.Contains(t, roots[0].Children, "child")
}

func TestBuildRejectsOrphanRow(t *testing.T) {
	b := New()
	err := b.Push(row(1, 0, "root"))
	require.NoError(t, err)
	err = b.Push(row(5, 99, "orphan"))
	require.Error(t, err)
}

func TestBuildDeepBacktrack(t *testing.T) {
	b := New()
	rows := []*model.FolderMeta{
		row(1, 0, "root"),
		row(2, 1, "a"),
		row(3, 2, "aa"),
		row(4, 3, "aaa"),
		row(5, 1, "b"), // backs out three levels to attach under root
	}
	for _, r := range rows {
		require.NoError(t, b.Push(r))
	}
	roots := b.Build()
	require.Len(t, roots, 1)
	root := roots[0]
	require.Contains(t, root.Children, "a")
	require.Contains(t, root.Children, "b")
	aa := root.Children["a"].Folder.Children["aa"].Folder
	require.Contains(t, aa.Children, "aaa")
}

// Package hierarchy reconstructs a forest of fsview folder rows arriving as
// a flat, parent-id-ordered (depth-first) stream, per §4.7. It maintains a
// stack representing the path from the root currently open; rows are
// attached to their parent, or popped and completed, in a single forward
// pass with no lookahead.
//
// Grounded on the teacher's coordinator/phases.go state-machine style (a
// small explicit stack instead of recursion for a streamed traversal),
// adapted from phase transitions to folder-tree reconstruction.
package hierarchy

import (
	"github.com/rerupp/fsweather/internal/coreerr"
	"github.com/rerupp/fsweather/internal/model"
)

type frame struct {
	folder *model.FolderMeta
	order  []string // insertion order of Children keys
}

// Builder reconstructs a forest from a row-at-a-time depth-first stream.
type Builder struct {
	stack []*frame
	roots []*model.FolderMeta
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Push feeds the next folder row, per §4.7's three-way rule:
//  1. empty stack: push as the new root-in-progress.
//  2. row.ParentID equals the id of the stack's top node: push as its child.
//  3. otherwise: pop and close nodes until one of the above applies.
func (b *Builder) Push(row *model.FolderMeta) error {
	row.Children = map[string]*model.Node{}

	for len(b.stack) > 0 && b.stack[len(b.stack)-1].folder.ID != row.ParentID {
		b.closeTop()
	}

	f := &frame{folder: row}
	if len(b.stack) == 0 {
		if row.ParentID != 0 {
			return coreerr.New(coreerr.Internal, "orphan folder row: parent not on open path")
		}
	}
	b.stack = append(b.stack, f)
	return nil
}

// closeTop pops the stack's top frame, stamps its accumulated child
// insertion order onto the folder, and attaches it to its new parent (the
// frame now on top of the stack), or emits it as a completed root if the
// stack is now empty.
func (b *Builder) closeTop() {
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	top.folder.ChildOrder = top.order

	if len(b.stack) == 0 {
		b.roots = append(b.roots, top.folder)
		return
	}
	parent := b.stack[len(b.stack)-1]
	parent.folder.Children[top.folder.Name] = &model.Node{Kind: model.NodeFolder, Folder: top.folder}
	parent.order = append(parent.order, top.folder.Name)
}

// Build drains any still-open frames and returns the completed forest of
// root folders, each with its full Children tree attached.
func (b *Builder) Build() []*model.FolderMeta {
	for len(b.stack) > 0 {
		b.closeTop()
	}
	roots := b.roots
	b.roots = nil
	return roots
}

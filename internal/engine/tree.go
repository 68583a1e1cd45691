package engine

import (
	"path/filepath"
	"strings"
	"time"
)

// ShadowDirName is the fixed name of the shadow mirror directory inside
// every watched root.
const ShadowDirName = ".seen"

// Tree is a configured root directory paired with its shadow directory, its
// node arena, and the action template applied to every file that fires.
type Tree struct {
	// RootPath is the absolute path of the watched root.
	RootPath string
	// ShadowPath is RootPath/.seen.
	ShadowPath string
	// ActionTemplate is the shell body appended after the FILE/REASON
	// preamble in every generated script; it may be empty.
	ActionTemplate string
	// IdleInterval is the quiescence window newly-armed nodes start with.
	IdleInterval time.Duration
	// RescanInterval governs the tree-root timer's re-arm period.
	RescanInterval time.Duration

	// Arena holds every node belonging to this tree.
	Arena *Arena

	// Root is the node representing the tree itself (KindTree), carrying
	// the rescan timer per the "tree-root timer" design note.
	Root *Node
}

// NewTree constructs a Tree and its KindTree root node. It does not touch
// the filesystem or the kernel; callers open directory handles and register
// watches separately.
func NewTree(rootPath, actionTemplate string) *Tree {
	rootPath = filepath.Clean(rootPath)
	t := &Tree{
		RootPath:       rootPath,
		ShadowPath:     filepath.Join(rootPath, ShadowDirName),
		ActionTemplate: actionTemplate,
		Arena:          NewArena(),
	}
	t.Root = t.Arena.Create(KindTree, rootPath, ".")
	return t
}

// InShadow reports whether an absolute path falls inside this tree's shadow
// subtree, the test every walker and event handler uses to reject shadow
// paths from node creation (invariant: no node is ever created for a path
// whose prefix equals the shadow path).
func (t *Tree) InShadow(absPath string) bool {
	absPath = filepath.Clean(absPath)
	return absPath == t.ShadowPath || strings.HasPrefix(absPath, t.ShadowPath+string(filepath.Separator))
}

// RelPath computes a node's path relative to the tree's root.
func (t *Tree) RelPath(absPath string) string {
	rel, err := filepath.Rel(t.RootPath, absPath)
	if err != nil {
		return absPath
	}
	return rel
}

// ShadowPathFor returns the shadow-mirror path for a node's relative path.
func (t *Tree) ShadowPathFor(relPath string) string {
	if relPath == "." {
		return t.ShadowPath
	}
	return filepath.Join(t.ShadowPath, relPath)
}

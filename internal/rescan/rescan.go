// Package rescan implements the depth-first walker that reconciles a
// watched tree's in-memory state with the filesystem: once at startup,
// periodically via the tree-root timer, and immediately on Q_OVERFLOW.
package rescan

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// Watcher is the subset of the inotify ingestor the walker needs: a way to
// register a watch on a newly discovered directory. It is an interface so
// the walker can be tested without a real kernel watch.
type Watcher interface {
	AddWatch(path string) (int32, error)
}

// Walker performs depth-first reconciliation walks of one tree.
type Walker struct {
	Tree    *engine.Tree
	Shadow  *shadow.Manager
	Watcher Watcher
	Logger  *logging.Logger
}

// New constructs a Walker.
func New(tree *engine.Tree, shadowMgr *shadow.Manager, watcher Watcher, logger *logging.Logger) *Walker {
	return &Walker{Tree: tree, Shadow: shadowMgr, Watcher: watcher, Logger: logger}
}

// Walk performs one full depth-first pass over the tree's root, skipping
// dot-prefixed names (except the root itself) and the shadow subtree,
// ensuring a watched Directory node and a shadow directory exist for every
// directory, and reconciling every regular file against its shadow entry.
// idleInterval is the default quiescence window newly-discovered files are
// armed with.
func (w *Walker) Walk(idleInterval time.Duration) error {
	return w.walkDir(w.Tree.RootPath, true, idleInterval)
}

func (w *Walker) walkDir(absPath string, isRoot bool, idleInterval time.Duration) error {
	if w.Tree.InShadow(absPath) {
		return nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return errors.Wrapf(err, "unable to read directory %q", absPath)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		childPath := filepath.Join(absPath, name)
		if w.Tree.InShadow(childPath) {
			continue
		}

		if entry.IsDir() {
			if err := w.visitDir(childPath, idleInterval); err != nil {
				w.Logger.Warn(err)
			}
			continue
		}

		if err := w.visitFile(childPath, idleInterval); err != nil {
			w.Logger.Warn(err)
		}
	}

	_ = isRoot
	return nil
}

// visitDir ensures a Directory node exists and is watched, ensures the
// parallel shadow directory exists, then recurses.
func (w *Walker) visitDir(absPath string, idleInterval time.Duration) error {
	relPath := w.Tree.RelPath(absPath)

	if err := w.Shadow.EnsureDir(relPath); err != nil {
		return err
	}

	if _, ok := w.Tree.Arena.FindByPath(absPath); !ok {
		n := w.Tree.Arena.Create(engine.KindDirectory, absPath, relPath)
		if w.Watcher != nil {
			watchID, err := w.Watcher.AddWatch(absPath)
			if err != nil {
				return errors.Wrapf(err, "unable to watch directory %q", absPath)
			}
			w.Tree.Arena.SetWatch(n, watchID)
		}
	}

	return w.walkDir(absPath, false, idleInterval)
}

// visitFile reconciles a regular file's shadow entry and creates a File
// node for it when the reconciliation calls for one.
func (w *Walker) visitFile(absPath string, idleInterval time.Duration) error {
	relPath := w.Tree.RelPath(absPath)

	if _, ok := w.Tree.Arena.FindByPath(absPath); ok {
		// Already tracked (e.g. mid-quiescence); nothing to reconcile.
		return nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "unable to stat %q", absPath)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	state, err := w.Shadow.Reconcile(relPath, info.ModTime(), idleInterval)
	if err != nil {
		return err
	}

	var reason engine.Reason
	switch state {
	case shadow.StateAbsent:
		reason = engine.ReasonFirstSeen
	case shadow.StateRetry:
		reason = engine.ReasonRetry
	case shadow.StateModified:
		reason = engine.ReasonModified
	case shadow.StateDone:
		return nil
	default:
		return nil
	}

	n := w.Tree.Arena.Create(engine.KindFile, absPath, relPath)
	n.IdleInterval = idleInterval
	w.Tree.Arena.SetDeadline(n, time.Now(), reason)
	return nil
}

// Package shadow implements the shadow tree manager: the hidden mirror
// directory that records, per watched file, whether it is absent, pending
// or retrying, or done, so that state survives a daemon restart.
package shadow

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
)

// Pending mode is u+rwx: present and either newly armed or being retried.
const pendingMode fs.FileMode = 0700

// Done mode is u+r,g+r: present, successfully actioned, do not act again.
const doneMode fs.FileMode = 0440

// State is the reconciled state of a shadow entry discovered during a
// startup scan.
type State int

const (
	// StateAbsent means the path has never been seen, or is pending first
	// action and has no entry yet.
	StateAbsent State = iota
	// StateDone means the path was already successfully actioned.
	StateDone
	// StateRetry means a previous run left a pending shadow entry behind;
	// the file needs to be retried.
	StateRetry
	// StateModified means the shadow entry is read-only but the original
	// file is substantially newer, so the file needs to be reprocessed.
	StateModified
)

// Manager mirrors one watched tree's directory hierarchy under its shadow
// path.
type Manager struct {
	tree *engine.Tree
}

// New creates a shadow tree manager for the given tree. It does not touch
// the filesystem; callers call EnsureRoot once before use.
func New(tree *engine.Tree) *Manager {
	return &Manager{tree: tree}
}

// EnsureRoot creates the shadow root directory if it does not already
// exist.
func (m *Manager) EnsureRoot() error {
	if err := os.MkdirAll(m.tree.ShadowPath, pendingMode); err != nil {
		return errors.Wrap(err, "unable to create shadow root")
	}
	return nil
}

// EnsureDir creates a shadow directory on demand during rescan, mode
// u+rwx, mirroring relPath under the shadow root.
func (m *Manager) EnsureDir(relPath string) error {
	path := m.tree.ShadowPathFor(relPath)
	if err := os.MkdirAll(path, pendingMode); err != nil {
		return errors.Wrapf(err, "unable to create shadow directory for %q", relPath)
	}
	return nil
}

// MarkPending creates or truncates the shadow file for a node's path, sets
// mode u+rwx, and writes the generated script body.
func (m *Manager) MarkPending(relPath string, script []byte) error {
	path := m.tree.ShadowPathFor(relPath)
	if err := os.MkdirAll(filepath.Dir(path), pendingMode); err != nil {
		return errors.Wrapf(err, "unable to create shadow parent for %q", relPath)
	}
	// WriteFile only applies the mode on creation and cannot write through a
	// read-only entry; force the mode first in case the file already existed
	// with a different mode (e.g. it was Done).
	if err := os.Chmod(path, pendingMode); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to set pending mode for %q", relPath)
	}
	if err := os.WriteFile(path, script, pendingMode); err != nil {
		return errors.Wrapf(err, "unable to write shadow entry for %q", relPath)
	}
	return nil
}

// MarkDone reopens the shadow file for a path, truncates it, and sets mode
// u+r,g+r.
func (m *Manager) MarkDone(relPath string) error {
	path := m.tree.ShadowPathFor(relPath)
	if err := os.WriteFile(path, nil, doneMode); err != nil {
		return errors.Wrapf(err, "unable to mark %q done", relPath)
	}
	if err := os.Chmod(path, doneMode); err != nil {
		return errors.Wrapf(err, "unable to set done mode for %q", relPath)
	}
	return nil
}

// DropShadow removes a path's shadow entry. A missing file is not an
// error.
func (m *Manager) DropShadow(relPath string) error {
	path := m.tree.ShadowPathFor(relPath)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to remove shadow entry for %q", relPath)
	}
	return nil
}

// Reconcile inspects the shadow entry for an original file (given its
// relative path and modification time) against the idle
// interval and reports the reconciled state per the startup reconciliation
// rules.
func (m *Manager) Reconcile(relPath string, originalModTime time.Time, idleInterval time.Duration) (State, error) {
	path := m.tree.ShadowPathFor(relPath)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return StateAbsent, nil
	}
	if err != nil {
		return StateAbsent, errors.Wrapf(err, "unable to stat shadow entry for %q", relPath)
	}

	if info.Mode().Perm()&0100 != 0 {
		// Present and executable: a previous run was interrupted before
		// completion.
		return StateRetry, nil
	}

	if originalModTime.Sub(info.ModTime()) > idleInterval {
		return StateModified, nil
	}

	return StateDone, nil
}

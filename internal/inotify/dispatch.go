package inotify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// defaultCookieTimeout is how long an opened MOVED_FROM waits for its
// MOVED_TO partner before being swept as an orphan, per the recommended
// resolution to the source's open question on cookie garbage collection.
const defaultCookieTimeout = 2 * time.Second

// RescanAllFunc forces an immediate full rescan of every tree, the
// recovery action for a Q_OVERFLOW record.
type RescanAllFunc func()

// AddWatcher is the subset of *Watcher the dispatcher needs to register new
// directories as they are discovered, kept as an interface so dispatch
// logic is testable without a real inotify instance.
type AddWatcher interface {
	AddWatch(path string) (int32, error)
}

// Dispatcher turns parsed Events for one tree into node-lifecycle
// transitions, per the priority-ordered mask dispatch table.
type Dispatcher struct {
	Tree    *engine.Tree
	Shadow  *shadow.Manager
	Watcher AddWatcher
	Logger  *logging.Logger

	// RescanAll is invoked (without blocking the caller past its own
	// runtime) when this tree observes Q_OVERFLOW.
	RescanAll RescanAllFunc

	// CookieTimeout bounds how long a MOVED_FROM waits for its MOVED_TO.
	CookieTimeout time.Duration

	cookieOpened map[uint32]time.Time
}

// NewDispatcher constructs a Dispatcher with the default cookie timeout.
func NewDispatcher(tree *engine.Tree, shadowMgr *shadow.Manager, watcher AddWatcher, logger *logging.Logger, rescanAll RescanAllFunc) *Dispatcher {
	return &Dispatcher{
		Tree:          tree,
		Shadow:        shadowMgr,
		Watcher:       watcher,
		Logger:        logger,
		RescanAll:     rescanAll,
		CookieTimeout: defaultCookieTimeout,
		cookieOpened:  make(map[uint32]time.Time),
	}
}

// Dispatch processes one raw event against the tree's arena, following the
// mask-priority dispatch table: Q_OVERFLOW, then IGNORED, then CREATE,
// CLOSE_WRITE, MOVED_FROM, MOVED_TO, DELETE, and finally the catch-all
// defer case. Only one branch fires per record even if multiple bits are
// set.
func (d *Dispatcher) Dispatch(ev Event, now time.Time) {
	if ev.Mask.Has(QOverflow) {
		d.Logger.Warn(fmt.Errorf("inotify queue overflowed for %s, forcing a full rescan", d.Tree.RootPath))
		if d.RescanAll != nil {
			d.RescanAll()
		}
		return
	}

	watched, ok := d.Tree.Arena.FindByWatch(ev.WatchID)
	if !ok {
		d.Logger.Error(fmt.Errorf("event for unknown watch id %d (mask %s)", ev.WatchID, ev.Mask))
		return
	}

	if ev.Mask.Has(Ignored) {
		d.Tree.Arena.Drop(watched.ID)
		return
	}

	absPath := watched.AbsPath
	if ev.NameSet {
		absPath = filepath.Join(watched.AbsPath, ev.Name)
	}
	if d.Tree.InShadow(absPath) {
		return
	}
	isDir := ev.Mask.Has(IsDir)

	switch {
	case ev.Mask.Has(Create):
		d.handleCreate(absPath, isDir, now)
	case ev.Mask.Has(CloseWrite):
		d.handleCloseWrite(absPath, now)
	case ev.Mask.Has(MovedFrom):
		d.handleMovedFrom(absPath, ev.Cookie, now)
	case ev.Mask.Has(MovedTo):
		d.handleMovedTo(absPath, ev.Cookie, isDir, now)
	case ev.Mask.Has(Delete):
		d.handleDelete(absPath, now)
	default:
		d.handleDefer(absPath, now)
	}
}

func (d *Dispatcher) handleCreate(absPath string, isDir bool, now time.Time) {
	relPath := d.Tree.RelPath(absPath)

	if isDir {
		if err := d.Shadow.EnsureDir(relPath); err != nil {
			d.Logger.Warn(err)
		}
		n, ok := d.Tree.Arena.FindByPath(absPath)
		if !ok {
			n = d.Tree.Arena.Create(engine.KindDirectory, absPath, relPath)
		}
		if d.Watcher != nil && n.WatchID == 0 {
			watchID, err := d.Watcher.AddWatch(absPath)
			if err != nil {
				d.Logger.Warn(err)
				return
			}
			d.Tree.Arena.SetWatch(n, watchID)
		}
		return
	}

	n, ok := d.Tree.Arena.FindByPath(absPath)
	if !ok {
		n = d.Tree.Arena.Create(engine.KindFile, absPath, relPath)
		n.IdleInterval = d.Tree.IdleInterval
	}
	d.Tree.Arena.SetDeadline(n, now, engine.ReasonFirstSeen)
}

func (d *Dispatcher) handleCloseWrite(absPath string, now time.Time) {
	relPath := d.Tree.RelPath(absPath)
	n, ok := d.Tree.Arena.FindByPath(absPath)
	if !ok {
		// A write closed on a path with no live node: either a file never
		// seen before (e.g. an existing file touched before its tree's first
		// rescan observed it), armed as first-seen, or one already actioned
		// (its node is destroyed once done), which its shadow entry marks
		// and which is armed as modified.
		reason := engine.ReasonFirstSeen
		if _, err := os.Stat(d.Tree.ShadowPathFor(relPath)); err == nil {
			reason = engine.ReasonModified
		}
		n = d.Tree.Arena.Create(engine.KindFile, absPath, relPath)
		n.IdleInterval = d.Tree.IdleInterval
		d.Tree.Arena.SetDeadline(n, now, reason)
		return
	}

	reason := n.Reason
	if reason != engine.ReasonFirstSeen {
		reason = engine.ReasonModified
	}
	d.Tree.Arena.SetDeadline(n, now, reason)
}

func (d *Dispatcher) handleMovedFrom(absPath string, cookie uint32, now time.Time) {
	n, ok := d.Tree.Arena.FindByPath(absPath)
	if !ok || cookie == 0 {
		return
	}
	d.Tree.Arena.SetCookie(n, cookie)
	d.cookieOpened[cookie] = now
}

func (d *Dispatcher) handleMovedTo(absPath string, cookie uint32, isDir bool, now time.Time) {
	if cookie != 0 {
		if n, ok := d.Tree.Arena.FindByCookie(cookie); ok {
			oldRelPath := n.RelPath
			newRelPath := d.Tree.RelPath(absPath)
			d.Tree.Arena.Rebind(n, absPath, newRelPath)
			d.Tree.Arena.SetCookie(n, 0)
			delete(d.cookieOpened, cookie)

			if n.Kind == engine.KindFile && oldRelPath != newRelPath {
				if err := d.Shadow.DropShadow(oldRelPath); err != nil {
					d.Logger.Warn(err)
				}
			}
			d.Tree.Arena.SetDeadline(n, now, engine.ReasonMoved)
			return
		}
	}

	// No prior MOVED_FROM for this cookie: a file moved in from outside
	// the tree, treated as CREATE.
	d.handleCreate(absPath, isDir, now)
}

func (d *Dispatcher) handleDelete(absPath string, now time.Time) {
	_ = now
	n, ok := d.Tree.Arena.FindByPath(absPath)
	if !ok {
		return
	}
	if n.Kind == engine.KindFile {
		if err := d.Shadow.DropShadow(n.RelPath); err != nil {
			d.Logger.Warn(err)
		}
	}
	d.Tree.Arena.Drop(n.ID)
}

func (d *Dispatcher) handleDefer(absPath string, now time.Time) {
	n, ok := d.Tree.Arena.FindByPath(absPath)
	if !ok {
		return
	}
	d.Tree.Arena.SetDeadline(n, now, n.Reason)
}

// ExpireCookies sweeps MOVED_FROM cookies that never received a matching
// MOVED_TO within CookieTimeout. The node itself is left in place at its
// pre-move path; only the in-flight cookie pairing is abandoned.
func (d *Dispatcher) ExpireCookies(now time.Time) {
	for cookie, opened := range d.cookieOpened {
		if now.Sub(opened) < d.CookieTimeout {
			continue
		}
		if n, ok := d.Tree.Arena.FindByCookie(cookie); ok {
			d.Tree.Arena.SetCookie(n, 0)
		}
		delete(d.cookieOpened, cookie)
	}
}

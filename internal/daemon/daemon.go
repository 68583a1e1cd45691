// Package daemon is the event-loop multiplexer: it owns every watched
// tree's runtime state and runs the single cooperative loop that
// translates the original epoll_wait-and-dispatch cycle into a Go select
// over per-tree change streams, the process signal stream, and the next
// computed expiration deadline.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/action"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/inotify"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/rescan"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// watcher is the subset of *inotify.Watcher the multiplexer needs,
// abstracted so the loop can be driven by a fake in tests.
type watcher interface {
	AddWatch(path string) (int32, error)
	Events() <-chan inotify.Event
	Errors() <-chan error
	Close() error
}

// TreeRuntime bundles one configured root's complete runtime: its arena
// and action template (Tree), shadow manager, kernel watcher, dispatcher,
// rescan walker, and action pipeline.
type TreeRuntime struct {
	Tree       *engine.Tree
	Shadow     *shadow.Manager
	Watcher    watcher
	Dispatcher *inotify.Dispatcher
	Walker     *rescan.Walker
	Pipeline   *action.Pipeline
}

// Daemon owns every watched tree and runs the multiplexer loop on a single
// goroutine, per the concurrency model's "one goroutine owns shared state"
// requirement.
type Daemon struct {
	Trees          []*TreeRuntime
	Logger         *logging.Logger
	RescanInterval time.Duration
}

// taggedEvent carries a tree index alongside the event so the merge
// goroutines can tell the main loop which tree's dispatcher to invoke.
type taggedEvent struct {
	treeIndex int
	event     inotify.Event
}

// Start performs each tree's initial rescan (before entering the event
// loop, per the rescan walker's invocation rules) and arms its tree-root
// timer.
func (d *Daemon) Start() error {
	now := time.Now()
	for _, tr := range d.Trees {
		if err := tr.Shadow.EnsureRoot(); err != nil {
			return err
		}

		watchID, err := tr.Watcher.AddWatch(tr.Tree.RootPath)
		if err != nil {
			return err
		}
		tr.Tree.Arena.SetWatch(tr.Tree.Root, watchID)

		if err := tr.Walker.Walk(tr.Tree.IdleInterval); err != nil {
			return err
		}

		tr.Tree.Root.IdleInterval = d.rescanInterval(tr)
		tr.Tree.Arena.SetDeadline(tr.Tree.Root, now, engine.ReasonTreeRoot)
	}
	return nil
}

func (d *Daemon) rescanInterval(tr *TreeRuntime) time.Duration {
	if tr.Tree.RescanInterval > 0 {
		return tr.Tree.RescanInterval
	}
	if d.RescanInterval > 0 {
		return d.RescanInterval
	}
	return time.Minute
}

// Run executes the multiplexer loop until ctx is cancelled, a termination
// signal arrives, or a tree's watcher reports a fatal (non-transient)
// error. It returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	merged := make(chan taggedEvent, 256)
	fatal := make(chan error, len(d.Trees))

	for i, tr := range d.Trees {
		i, tr := i, tr
		go func() {
			for ev := range tr.Watcher.Events() {
				select {
				case merged <- taggedEvent{i, ev}:
				case <-ctx.Done():
					return
				}
			}
		}()
		go func() {
			if err, ok := <-tr.Watcher.Errors(); ok {
				select {
				case fatal <- err:
				case <-ctx.Done():
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		now := time.Now()
		d.drainExpired(ctx, now)

		timeout := d.nextTimeout(now)
		timer := time.NewTimer(timeout)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case sig := <-sigCh:
			timer.Stop()
			d.Logger.Infof("received %v, shutting down", sig)
			return nil
		case err := <-fatal:
			timer.Stop()
			return err
		case te := <-merged:
			timer.Stop()
			d.Trees[te.treeIndex].Dispatcher.Dispatch(te.event, time.Now())
		case <-timer.C:
			// Nothing ready; loop around to recompute expirations.
		}
	}
}

// drainExpired fires the action pipeline for every expired File node and
// triggers a rescan for every expired tree-root timer, across all trees.
func (d *Daemon) drainExpired(ctx context.Context, now time.Time) {
	for _, tr := range d.Trees {
		for _, n := range tr.Tree.Arena.PopExpired(now) {
			if n.Kind == engine.KindTree {
				if err := tr.Walker.Walk(tr.Tree.IdleInterval); err != nil {
					d.Logger.Warn(err)
				}
				tr.Tree.Arena.SetDeadline(n, now, engine.ReasonTreeRoot)
				continue
			}
			tr.Pipeline.Fire(ctx, n, now)
		}
		tr.Dispatcher.ExpireCookies(now)
	}
}

// nextTimeout sizes the multiplexer's blocking wait from the earliest
// deadline across every tree, floored at a millisecond and defaulting to a
// second when nothing is armed.
func (d *Daemon) nextTimeout(now time.Time) time.Duration {
	best := time.Duration(-1)
	for _, tr := range d.Trees {
		deadline, ok := tr.Tree.Arena.PeekNextDeadline()
		if !ok {
			continue
		}
		until := deadline.Sub(now)
		if until < 0 {
			until = 0
		}
		if best < 0 || until < best {
			best = until
		}
	}
	if best < 0 {
		return time.Second
	}
	if best < time.Millisecond {
		return time.Millisecond
	}
	return best
}

// RescanAll forces an immediate rescan of every tree, the recovery action
// for Q_OVERFLOW.
func (d *Daemon) RescanAll() {
	for _, tr := range d.Trees {
		if err := tr.Walker.Walk(tr.Tree.IdleInterval); err != nil {
			d.Logger.Warn(err)
		}
	}
}

package daemon

import (
	"time"

	"github.com/pkg/errors"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/action"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/config"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/inotify"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/rescan"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// Build constructs a Daemon from a loaded configuration, one TreeRuntime
// per configured watch, each with its own arena, shadow manager, inotify
// watcher, dispatcher, rescan walker, and action pipeline. RescanAll is
// wired so any single tree's Q_OVERFLOW rescans every tree, matching the
// daemon-wide recovery behavior.
func Build(cfg *config.Config, idleInterval, rescanInterval time.Duration, retryCap int, logger *logging.Logger) (*Daemon, error) {
	d := &Daemon{Logger: logger, RescanInterval: rescanInterval}

	for _, watch := range cfg.Watches {
		tree := engine.NewTree(watch.Path, watch.Exec)
		tree.IdleInterval = idleInterval
		tree.RescanInterval = rescanInterval

		shadowMgr := shadow.New(tree)

		w, err := inotify.NewWatcher()
		if err != nil {
			return nil, errors.Wrapf(err, "unable to create watcher for %q", watch.Path)
		}

		treeLogger := logger.Sublogger(watch.Path)

		dispatcher := inotify.NewDispatcher(tree, shadowMgr, w, treeLogger, d.RescanAll)
		walker := rescan.New(tree, shadowMgr, w, treeLogger)
		pipeline := action.NewPipeline(tree, shadowMgr, action.LoggingExecutor(treeLogger), treeLogger)
		if retryCap > 0 {
			pipeline.RetryCap = retryCap
		}

		d.Trees = append(d.Trees, &TreeRuntime{
			Tree:       tree,
			Shadow:     shadowMgr,
			Watcher:    w,
			Dispatcher: dispatcher,
			Walker:     walker,
			Pipeline:   pipeline,
		})
	}

	return d, nil
}

// Close releases every tree's kernel watcher. Callers invoke this after Run
// returns.
func (d *Daemon) Close() error {
	var first error
	for _, tr := range d.Trees {
		if err := tr.Watcher.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

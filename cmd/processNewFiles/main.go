// Command processNewFiles is a long-running filesystem surveillance daemon:
// for each configured root it watches for created, modified, and moved
// files and, once a file has gone quiescent, runs a shell action bound to
// the triggering path and the reason it was selected.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/config"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/daemon"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/pidfile"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/version"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// executableName is used to derive the PID file path and the default
// configuration search path, per spec §6.
const executableName = "processNewFiles"

// maxConfigFiles bounds the number of -c/--config-file flags accepted, per
// spec §6 ("repeatable, up to 10").
const maxConfigFiles = 10

// defaultIdleInterval is the quiescence window newly-armed file nodes start
// with absent any per-group override.
const defaultIdleInterval = 5 * time.Second

// defaultRescanInterval is the tree-root timer's re-arm period; spec §4.5
// requires a minimum of one second.
const defaultRescanInterval = time.Minute

// rootConfiguration holds the flag-bound values for the single flag-shaped
// command (no subcommands), grounded on the teacher's cmd/mutagen/main.go
// shape but adapted to this daemon's CLI surface.
var rootConfiguration struct {
	help        bool
	version     bool
	kill        bool
	debugLevel  int
	configFiles []string
}

var rootCommand = &cobra.Command{
	Use:   executableName,
	Short: "processNewFiles watches directories and runs an action once a new or changed file goes quiescent.",
	RunE:  rootMain,
}

func init() {
	flags := rootCommand.Flags()

	// Manually add a help flag to override the default message; Cobra still
	// implements the behavior automatically.
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.BoolVar(&rootConfiguration.kill, "kill", false, "Terminate a running daemon")
	flags.IntVar(&rootConfiguration.debugLevel, "debug-level", 0, "Set logging verbosity (0-7)")
	flags.StringArrayVarP(&rootConfiguration.configFiles, "config-file", "c", nil, "Add a configuration file (repeatable, up to 10)")

	// Disable Cobra's command sorting and mousetrap handling, matching the
	// teacher's root command setup.
	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""
}

func rootMain(command *cobra.Command, arguments []string) error {
	if rootConfiguration.version {
		fmt.Fprintln(command.OutOrStdout(), version.String())
		return nil
	}

	if rootConfiguration.kill {
		if err := pidfile.Kill(executableName); err != nil {
			return errors.Wrap(err, "unable to kill daemon")
		}
		return nil
	}

	if len(rootConfiguration.configFiles) > maxConfigFiles {
		return errors.Errorf("too many -c/--config-file flags (maximum %d)", maxConfigFiles)
	}

	cfg, err := config.Load(executableName, rootConfiguration.configFiles)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	for _, root := range arguments {
		cfg.Watches = append(cfg.Watches, config.Watch{Path: root})
	}
	if len(cfg.Watches) == 0 {
		return command.Help()
	}

	logger := logging.NewLogger(os.Stderr, logging.LevelFromVerbosity(rootConfiguration.debugLevel))

	pid, err := pidfile.Acquire(executableName)
	if err != nil {
		return errors.Wrap(err, "unable to acquire PID file")
	}
	defer func() {
		if err := pid.Release(); err != nil {
			logger.Error(errors.Wrap(err, "unable to release PID file"))
		}
	}()

	d, err := daemon.Build(cfg, defaultIdleInterval, defaultRescanInterval, 0, logger)
	if err != nil {
		return errors.Wrap(err, "unable to construct daemon")
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error(errors.Wrap(err, "unable to close daemon"))
		}
	}()

	if err := d.Start(); err != nil {
		return errors.Wrap(err, "unable to start daemon")
	}

	// Run blocks until the multiplexer's own signal handling (§4.6) sees an
	// interactive-attention signal or a tree's watcher reports a fatal error.
	return d.Run(context.Background())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

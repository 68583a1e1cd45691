package action

import (
	"context"
	"os/exec"

	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// Executor runs a generated script at scriptPath and reports whether it
// succeeded. The specification treats the executor as an external
// collaborator; this is the default, swappable implementation so the
// retry/backoff policy is exercisable end-to-end.
type Executor func(ctx context.Context, scriptPath string) error

// DefaultExecutor runs the script with /bin/bash, returning the command's
// error verbatim (nil on exit code 0). Its stdout and stderr are discarded.
func DefaultExecutor(ctx context.Context, scriptPath string) error {
	cmd := exec.CommandContext(ctx, "/bin/bash", scriptPath)
	return cmd.Run()
}

// LoggingExecutor wraps DefaultExecutor's behavior, piping the script's
// combined stdout and stderr through logger's Writer so script output lands
// in the daemon's own log stream instead of being discarded.
func LoggingExecutor(logger *logging.Logger) Executor {
	return func(ctx context.Context, scriptPath string) error {
		cmd := exec.CommandContext(ctx, "/bin/bash", scriptPath)
		w := logger.Writer()
		cmd.Stdout = w
		cmd.Stderr = w
		return cmd.Run()
	}
}

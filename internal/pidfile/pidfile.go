// Package pidfile manages the daemon's PID file: writing the running
// process-group id at startup, taking an advisory lock so a second
// instance fails fast, removing the file on exit, and supporting --kill by
// locating and signaling a running daemon's process group.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/filesystem/locking"
)

// Path computes the PID file path for an executable name, per §6:
// /tmp/<executable>/<executable>.pid.
func Path(executableName string) string {
	return filepath.Join(os.TempDir(), executableName, executableName+".pid")
}

// PIDFile represents an acquired, locked PID file for the running daemon.
type PIDFile struct {
	path   string
	locker *locking.Locker
}

// Acquire creates (if necessary) and locks the PID file, writes the current
// process group id into it, and returns a handle used to remove it on
// exit. It fails if another instance already holds the lock.
func Acquire(executableName string) (*PIDFile, error) {
	return acquireAt(Path(executableName))
}

// acquireAt is the path-parameterized core of Acquire, split out so tests
// can exercise it against a temporary directory without relying on
// os.TempDir().
func acquireAt(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create PID file directory")
	}

	locker, err := locking.NewLocker(path, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open PID file")
	}
	if err := locker.Lock(false); err != nil {
		locker.Close()
		return nil, errors.Wrap(err, "daemon already running (unable to acquire PID file lock)")
	}

	pgid, err := unix.Getpgid(os.Getpid())
	if err != nil {
		locker.Unlock()
		locker.Close()
		return nil, errors.Wrap(err, "unable to determine process group id")
	}

	file := locker.File()
	if err := file.Truncate(0); err != nil {
		locker.Unlock()
		locker.Close()
		return nil, errors.Wrap(err, "unable to truncate PID file")
	}
	// The locker opens the file O_APPEND, where WriteAt is refused; after
	// the truncate above, an appending Write lands at offset zero.
	if _, err := file.Write([]byte(strconv.Itoa(pgid))); err != nil {
		locker.Unlock()
		locker.Close()
		return nil, errors.Wrap(err, "unable to write PID file")
	}

	return &PIDFile{path: path, locker: locker}, nil
}

// Release unlocks and removes the PID file. It is safe to call during
// shutdown after a fatal handler return, an interactive-attention signal,
// or a clean stop.
func (p *PIDFile) Release() error {
	var errs []string
	if err := p.locker.Unlock(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := p.locker.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ReadProcessGroup reads the process-group id recorded in a running
// daemon's PID file.
func ReadProcessGroup(executableName string) (int, error) {
	data, err := os.ReadFile(Path(executableName))
	if err != nil {
		return 0, errors.Wrap(err, "unable to read PID file")
	}
	pgid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrap(err, "PID file does not contain a valid process group id")
	}
	return pgid, nil
}

// Kill implements --kill: it reads the PID file and sends SIGTERM to the
// recorded process group.
func Kill(executableName string) error {
	pgid, err := ReadProcessGroup(executableName)
	if err != nil {
		return err
	}
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return fmt.Errorf("unable to signal process group %d: %w", pgid, err)
	}
	return nil
}

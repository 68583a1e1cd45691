// Package locking provides advisory file locking, used by internal/pidfile
// to guard a PID file against a second daemon instance racing the first
// over the same watched roots.
package locking

import (
	"os"

	"github.com/pkg/errors"
)

// Locker provides advisory file locking facilities over a single file.
type Locker struct {
	// file is the underlying file object to be locked.
	file *os.File
	// held records whether Lock has succeeded without a matching Unlock.
	held bool
}

// NewLocker attempts to create a lock with the file at the specified path,
// creating the file if necessary. The lock is returned in an unlocked
// state.
func NewLocker(path string, permissions os.FileMode) (*Locker, error) {
	mode := os.O_RDWR | os.O_CREATE | os.O_APPEND
	file, err := os.OpenFile(path, mode, permissions)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open lock file")
	}
	return &Locker{file: file}, nil
}

// Held reports whether this Locker currently holds the lock.
func (l *Locker) Held() bool {
	return l.held
}

// File exposes the underlying file so callers can read or write its
// contents (e.g. a PID) while holding the lock.
func (l *Locker) File() *os.File {
	return l.file
}

// Close releases the underlying file descriptor, which also releases the
// lock if it is still held.
func (l *Locker) Close() error {
	return l.file.Close()
}

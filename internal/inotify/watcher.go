// Package inotify is the filesystem change ingestor: it reads raw kernel
// change records for a watched tree and turns them into parsed Events,
// preserving the watch id, the event mask, the rename cookie, and the
// distinction between an absent child name and an empty one. A higher
// level watcher such as fsnotify is deliberately not used here because it
// hides exactly those three things behind a coalesced API.
package inotify

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event is one parsed inotify record.
type Event struct {
	// WatchID identifies which watched directory this record concerns.
	WatchID int32
	// Mask carries the raw event bits, possibly more than one.
	Mask Mask
	// Cookie pairs a MOVED_FROM with its MOVED_TO, zero otherwise.
	Cookie uint32
	// Name is the child name the event concerns. NameSet is false when the
	// kernel record's length field was zero, meaning the event concerns
	// the watched path itself, not a child — this must never be treated
	// as an empty-string child name.
	Name    string
	NameSet bool
}

// eventBufferSize is sized for 64 simultaneous events with a full-length
// name each, matching the conventional inotify read-buffer sizing.
const eventBufferSize = 64 * (unix.SizeofInotifyEvent + unix.PathMax)

// Watcher owns one inotify instance (one per watched tree, per the data
// model's "change-notification handle used for this root").
type Watcher struct {
	fd     int
	events chan Event
	errors chan error
	stop   chan struct{}
	done   chan struct{}
}

// NewWatcher creates an inotify instance and starts its reader goroutine.
func NewWatcher() (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize inotify")
	}

	w := &Watcher{
		fd:     fd,
		events: make(chan Event, 4096),
		errors: make(chan error, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// AddWatch registers a directory for the bits the ingestor's dispatch table
// needs and returns its watch id.
func (w *Watcher) AddWatch(path string) (int32, error) {
	wd, err := unix.InotifyAddWatch(w.fd, path, uint32(watchMask))
	if err != nil {
		return 0, errors.Wrapf(err, "unable to watch %q", path)
	}
	return int32(wd), nil
}

// RemoveWatch removes a previously registered watch. It is not an error to
// remove a watch the kernel already invalidated (IN_IGNORED will have, or
// will, arrive for it regardless).
func (w *Watcher) RemoveWatch(watchID int32) error {
	if _, err := unix.InotifyRmWatch(w.fd, uint32(watchID)); err != nil && err != unix.EINVAL {
		return errors.Wrap(err, "unable to remove watch")
	}
	return nil
}

// Events returns the channel of parsed events for this tree.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of fatal read errors. Per the error handling
// design, only errors outside the transient set (EINTR, EAGAIN) ever reach
// here, and receiving one means the event loop should exit.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the reader goroutine and releases the inotify file
// descriptor. It blocks until the reader goroutine has exited.
func (w *Watcher) Close() error {
	close(w.stop)
	err := unix.Close(w.fd)
	<-w.done
	return err
}

// run is the reader goroutine body: one blocking read loop translating raw
// kernel records into the Events channel.
func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.events)

	buf := make([]byte, eventBufferSize)
	for {
		n, err := unix.Read(w.fd, buf)

		select {
		case <-w.stop:
			return
		default:
		}

		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			select {
			case w.errors <- errors.Wrap(err, "inotify read failed"):
			case <-w.stop:
			}
			return
		}
		if n < unix.SizeofInotifyEvent {
			continue
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(raw.Len)

			event := Event{
				WatchID: raw.Wd,
				Mask:    Mask(raw.Mask),
				Cookie:  raw.Cookie,
			}
			if nameLen > 0 {
				nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				event.Name = strings.TrimRight(string(nameBytes), "\x00")
				event.NameSet = true
			}

			offset += unix.SizeofInotifyEvent + nameLen

			select {
			case w.events <- event:
			case <-w.stop:
				return
			}
		}
	}
}

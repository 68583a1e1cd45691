package inotify

import "golang.org/x/sys/unix"

// Mask is a raw inotify event mask, kept as its own type so dispatch code
// reads as mask bits rather than bare integers.
type Mask uint32

// Mask bits relevant to the ingestor. Named after the kernel's IN_* macros
// rather than renamed, since that is what a reader cross-referencing
// inotify(7) expects.
const (
	Access       = Mask(unix.IN_ACCESS)
	Modify       = Mask(unix.IN_MODIFY)
	Attrib       = Mask(unix.IN_ATTRIB)
	CloseWrite   = Mask(unix.IN_CLOSE_WRITE)
	CloseNoWrite = Mask(unix.IN_CLOSE_NOWRITE)
	Open         = Mask(unix.IN_OPEN)
	MovedFrom    = Mask(unix.IN_MOVED_FROM)
	MovedTo      = Mask(unix.IN_MOVED_TO)
	Create       = Mask(unix.IN_CREATE)
	Delete       = Mask(unix.IN_DELETE)
	DeleteSelf   = Mask(unix.IN_DELETE_SELF)
	MoveSelf     = Mask(unix.IN_MOVE_SELF)
	QOverflow    = Mask(unix.IN_Q_OVERFLOW)
	Ignored      = Mask(unix.IN_IGNORED)
	IsDir        = Mask(unix.IN_ISDIR)
	Unmount      = Mask(unix.IN_UNMOUNT)

	// watchMask is what AddWatch registers on every directory: enough bits
	// to drive every handler in the ingestor's dispatch table.
	watchMask = Create | CloseWrite | MovedFrom | MovedTo | Delete | DeleteSelf | MoveSelf
)

// Has reports whether the mask has every bit in other set.
func (m Mask) Has(other Mask) bool {
	return m&other == other
}

func (m Mask) String() string {
	names := []struct {
		bit  Mask
		name string
	}{
		{QOverflow, "Q_OVERFLOW"},
		{Ignored, "IGNORED"},
		{Create, "CREATE"},
		{CloseWrite, "CLOSE_WRITE"},
		{MovedFrom, "MOVED_FROM"},
		{MovedTo, "MOVED_TO"},
		{Delete, "DELETE"},
		{DeleteSelf, "DELETE_SELF"},
		{MoveSelf, "MOVE_SELF"},
		{IsDir, "ISDIR"},
		{Unmount, "UNMOUNT"},
	}
	s := ""
	for _, n := range names {
		if m.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "0"
	}
	return s
}

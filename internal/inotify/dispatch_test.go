package inotify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

type fakeWatcher struct {
	next int32
}

func (f *fakeWatcher) AddWatch(path string) (int32, error) {
	f.next++
	return f.next, nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *engine.Tree) {
	t.Helper()
	root := t.TempDir()
	tree := engine.NewTree(root, "")
	tree.IdleInterval = time.Second
	shadowMgr := shadow.New(tree)
	if err := shadowMgr.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	logger := logging.NewLogger(os.Stderr, logging.LevelDisabled)
	d := NewDispatcher(tree, shadowMgr, &fakeWatcher{}, logger, nil)
	tree.Arena.SetWatch(tree.Root, 1)
	return d, tree
}

func TestDispatchCreateArmsFirstSeen(t *testing.T) {
	d, tree := newTestDispatcher(t)
	now := time.Now()

	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "a.txt", NameSet: true}, now)

	n, ok := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "a.txt"))
	if !ok {
		t.Fatalf("expected a File node to be created")
	}
	if n.Reason != engine.ReasonFirstSeen {
		t.Fatalf("expected reason FirstSeen, got %v", n.Reason)
	}
	if _, ok := tree.Arena.PeekNextDeadline(); !ok {
		t.Fatalf("expected the new node to be armed")
	}
}

func TestDispatchCloseWritePreservesFirstSeen(t *testing.T) {
	d, tree := newTestDispatcher(t)
	now := time.Now()

	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "a.txt", NameSet: true}, now)
	d.Dispatch(Event{WatchID: 1, Mask: CloseWrite, Name: "a.txt", NameSet: true}, now.Add(time.Millisecond))

	n, _ := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "a.txt"))
	if n.Reason != engine.ReasonFirstSeen {
		t.Fatalf("expected reason to remain FirstSeen across CLOSE_WRITE, got %v", n.Reason)
	}
}

func TestDispatchCloseWriteAfterDoneBecomesModified(t *testing.T) {
	d, tree := newTestDispatcher(t)
	now := time.Now()

	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "a.txt", NameSet: true}, now)
	n, _ := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "a.txt"))
	n.Reason = engine.ReasonRescan // simulate a non-FirstSeen prior reason

	d.Dispatch(Event{WatchID: 1, Mask: CloseWrite, Name: "a.txt", NameSet: true}, now.Add(time.Millisecond))

	if n.Reason != engine.ReasonModified {
		t.Fatalf("expected reason Modified, got %v", n.Reason)
	}
}

func TestDispatchIgnoredDropsNode(t *testing.T) {
	d, tree := newTestDispatcher(t)
	dirPath := filepath.Join(tree.RootPath, "sub")
	n := tree.Arena.Create(engine.KindDirectory, dirPath, "sub")
	tree.Arena.SetWatch(n, 2)

	d.Dispatch(Event{WatchID: 2, Mask: Ignored}, time.Now())

	if _, ok := tree.Arena.Get(n.ID); ok {
		t.Fatalf("expected node to be dropped on IGNORED")
	}
}

func TestDispatchDeleteDropsShadow(t *testing.T) {
	d, tree := newTestDispatcher(t)
	now := time.Now()
	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "a.txt", NameSet: true}, now)

	shadowMgr := shadow.New(tree)
	if err := shadowMgr.MarkPending("a.txt", []byte("script")); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	d.Dispatch(Event{WatchID: 1, Mask: Delete, Name: "a.txt", NameSet: true}, now.Add(time.Millisecond))

	if _, ok := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "a.txt")); ok {
		t.Fatalf("expected node to be dropped on DELETE")
	}
	if _, err := os.Stat(tree.ShadowPathFor("a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected shadow entry to be removed on DELETE")
	}
}

func TestDispatchMovePairingRebindsPath(t *testing.T) {
	d, tree := newTestDispatcher(t)
	now := time.Now()
	const cookie = uint32(42)

	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "x", NameSet: true}, now)
	d.Dispatch(Event{WatchID: 1, Mask: MovedFrom, Name: "x", Cookie: cookie, NameSet: true}, now.Add(time.Millisecond))
	d.Dispatch(Event{WatchID: 1, Mask: MovedTo, Name: "y", Cookie: cookie, NameSet: true}, now.Add(2*time.Millisecond))

	if _, ok := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "x")); ok {
		t.Fatalf("old path should no longer resolve after a completed move")
	}
	n, ok := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "y"))
	if !ok {
		t.Fatalf("new path should resolve to the moved node")
	}
	if n.Reason != engine.ReasonMoved {
		t.Fatalf("expected reason Moved, got %v", n.Reason)
	}
	if n.Cookie != 0 {
		t.Fatalf("expected cookie to be cleared after pairing completes")
	}
}

func TestDispatchMovedToWithoutPriorFromTreatedAsCreate(t *testing.T) {
	d, tree := newTestDispatcher(t)
	d.Dispatch(Event{WatchID: 1, Mask: MovedTo, Name: "incoming", Cookie: 99, NameSet: true}, time.Now())

	n, ok := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "incoming"))
	if !ok {
		t.Fatalf("expected a node to be created for an unpaired MOVED_TO")
	}
	if n.Reason != engine.ReasonFirstSeen {
		t.Fatalf("expected reason FirstSeen for an unpaired MOVED_TO, got %v", n.Reason)
	}
}

func TestExpireCookiesSweepsOrphans(t *testing.T) {
	d, tree := newTestDispatcher(t)
	d.CookieTimeout = time.Millisecond
	now := time.Now()

	d.Dispatch(Event{WatchID: 1, Mask: Create, Name: "x", NameSet: true}, now)
	d.Dispatch(Event{WatchID: 1, Mask: MovedFrom, Name: "x", Cookie: 7, NameSet: true}, now)

	n, _ := tree.Arena.FindByPath(filepath.Join(tree.RootPath, "x"))
	if n.Cookie != 7 {
		t.Fatalf("expected cookie to be set after MOVED_FROM")
	}

	d.ExpireCookies(now.Add(time.Second))

	if n.Cookie != 0 {
		t.Fatalf("expected orphan cookie to be cleared after timeout")
	}
	if _, ok := tree.Arena.FindByCookie(7); ok {
		t.Fatalf("cookie index should no longer hold the expired cookie")
	}
}

func TestDispatchUnknownWatchIDLogsAndReturns(t *testing.T) {
	d, tree := newTestDispatcher(t)
	before := tree.Arena.Len()

	d.Dispatch(Event{WatchID: 999, Mask: Create, Name: "x", NameSet: true}, time.Now())

	if tree.Arena.Len() != before {
		t.Fatalf("expected no state change for an event on an unknown watch id")
	}
}

func TestDispatchQOverflowTriggersRescanAll(t *testing.T) {
	root := t.TempDir()
	tree := engine.NewTree(root, "")
	shadowMgr := shadow.New(tree)
	if err := shadowMgr.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	logger := logging.NewLogger(os.Stderr, logging.LevelDisabled)

	called := false
	d := NewDispatcher(tree, shadowMgr, &fakeWatcher{}, logger, func() { called = true })

	d.Dispatch(Event{Mask: QOverflow}, time.Now())

	if !called {
		t.Fatalf("expected Q_OVERFLOW to invoke RescanAll")
	}
}

package engine

import (
	"testing"
	"time"
)

func TestExpirationOrdering(t *testing.T) {
	a := NewArena()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	slow := a.Create(KindFile, "/w/slow", "slow")
	slow.IdleInterval = 3 * time.Second
	a.SetDeadline(slow, base, ReasonFirstSeen)

	fast := a.Create(KindFile, "/w/fast", "fast")
	fast.IdleInterval = 1 * time.Second
	a.SetDeadline(fast, base, ReasonFirstSeen)

	deadline, ok := a.PeekNextDeadline()
	if !ok {
		t.Fatalf("expected a pending deadline")
	}
	if !deadline.Equal(fast.Deadline) {
		t.Fatalf("expected the fast node's deadline to sort first")
	}

	expired := a.PopExpired(base.Add(2 * time.Second))
	if len(expired) != 1 || expired[0].ID != fast.ID {
		t.Fatalf("expected only the fast node to have expired, got %v", expired)
	}

	expired = a.PopExpired(base.Add(10 * time.Second))
	if len(expired) != 1 || expired[0].ID != slow.ID {
		t.Fatalf("expected the slow node to expire next, got %v", expired)
	}

	if _, ok := a.PeekNextDeadline(); ok {
		t.Fatalf("expected an empty expiration list")
	}
}

func TestSetDeadlineReArmsInPlace(t *testing.T) {
	a := NewArena()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := a.Create(KindFile, "/w/a", "a")
	n.IdleInterval = 5 * time.Second
	a.SetDeadline(n, base, ReasonFirstSeen)
	a.SetDeadline(n, base.Add(time.Second), ReasonModified)

	if n.Reason != ReasonModified {
		t.Fatalf("expected reason to be updated to Modified")
	}
	if len(a.expiration) != 1 {
		t.Fatalf("re-arming should not duplicate the node in the expiration list, got %d entries", len(a.expiration))
	}
}

func TestSetDeadlineZeroIntervalDisarms(t *testing.T) {
	a := NewArena()
	n := a.Create(KindFile, "/w/a", "a")
	n.IdleInterval = 0
	a.SetDeadline(n, time.Now(), ReasonFirstSeen)

	if _, ok := a.PeekNextDeadline(); ok {
		t.Fatalf("expected zero idle interval to leave the node disarmed")
	}
}

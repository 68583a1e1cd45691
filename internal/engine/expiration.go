package engine

import (
	"sort"
	"time"
)

// SetDeadline arms or re-arms a node's expiration. If the node is already in
// the list it is removed first; it is reinserted in sorted order only if
// idleInterval is positive (an idleInterval of zero disarms the node,
// e.g. Tree nodes between rescans when no interval has been configured
// yet). Ties on deadline break by insertion order, which a stable search
// over the existing order gives for free.
func (a *Arena) SetDeadline(n *Node, now time.Time, reason Reason) {
	a.removeFromExpiration(n.ID)

	n.Reason = reason
	if n.IdleInterval <= 0 {
		return
	}
	n.Deadline = now.Add(n.IdleInterval)

	idx := sort.Search(len(a.expiration), func(i int) bool {
		other, ok := a.nodes[a.expiration[i]]
		return !ok || other.Deadline.After(n.Deadline)
	})
	a.expiration = append(a.expiration, 0)
	copy(a.expiration[idx+1:], a.expiration[idx:])
	a.expiration[idx] = n.ID
	n.inExpiration = true
}

// removeFromExpiration drops a node from the expiration list if present.
// The list is rarely more than a few hundred entries and is walked only
// from the head under normal load, so a linear scan here is acceptable per
// the component design's own note that this path is not hot.
func (a *Arena) removeFromExpiration(id NodeID) {
	n, ok := a.nodes[id]
	if ok && !n.inExpiration {
		return
	}
	for i, v := range a.expiration {
		if v == id {
			a.expiration = append(a.expiration[:i], a.expiration[i+1:]...)
			break
		}
	}
	if ok {
		n.inExpiration = false
	}
}

// PopExpired removes and returns every node whose deadline is at or before
// now, in ascending deadline order, leaving the remainder of the list
// sorted.
func (a *Arena) PopExpired(now time.Time) []*Node {
	i := 0
	for ; i < len(a.expiration); i++ {
		n, ok := a.nodes[a.expiration[i]]
		if !ok || n.Deadline.After(now) {
			break
		}
	}
	if i == 0 {
		return nil
	}
	expired := make([]*Node, 0, i)
	for _, id := range a.expiration[:i] {
		if n, ok := a.nodes[id]; ok {
			n.inExpiration = false
			expired = append(expired, n)
		}
	}
	a.expiration = a.expiration[i:]
	return expired
}

// PeekNextDeadline returns the deadline of the head of the expiration list,
// used to size the multiplexer's next blocking wait.
func (a *Arena) PeekNextDeadline() (time.Time, bool) {
	if len(a.expiration) == 0 {
		return time.Time{}, false
	}
	n, ok := a.nodes[a.expiration[0]]
	if !ok {
		return time.Time{}, false
	}
	return n.Deadline, true
}

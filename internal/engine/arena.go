package engine

// Arena owns the full node population for one watched tree along with the
// three auxiliary indices described in the component design: by_path_hash,
// by_watch_id, and by_cookie. The expiration ordering lives in
// expiration.go. None of it is safe for concurrent use — per the
// concurrency model, it is mutated only from the single event-loop
// goroutine.
type Arena struct {
	nodes      map[NodeID]*Node
	byPathHash map[uint64]NodeID
	byWatchID  map[int32]NodeID
	byCookie   map[uint32]NodeID
	expiration []NodeID
	nextID     NodeID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		nodes:      make(map[NodeID]*Node),
		byPathHash: make(map[uint64]NodeID),
		byWatchID:  make(map[int32]NodeID),
		byCookie:   make(map[uint32]NodeID),
	}
}

// Create allocates a new node, computes its path hash, inserts it into the
// arena and the path-hash index, and returns it. Watch id and cookie start
// unset; callers arm them with SetWatch/SetCookie once known.
func (a *Arena) Create(kind NodeKind, absPath, relPath string) *Node {
	id := a.nextID
	a.nextID++

	n := &Node{
		ID:       id,
		Kind:     kind,
		AbsPath:  absPath,
		RelPath:  relPath,
		PathHash: HashPath(absPath),
	}
	a.nodes[id] = n
	a.byPathHash[n.PathHash] = id
	return n
}

// Get returns the node for an id, if it still exists.
func (a *Arena) Get(id NodeID) (*Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// FindByPath looks up a node by the hash of an absolute path.
func (a *Arena) FindByPath(absPath string) (*Node, bool) {
	id, ok := a.byPathHash[HashPath(absPath)]
	if !ok {
		return nil, false
	}
	n := a.nodes[id]
	return n, n != nil
}

// FindByWatch looks up a Tree or Directory node by its kernel watch id.
func (a *Arena) FindByWatch(watchID int32) (*Node, bool) {
	id, ok := a.byWatchID[watchID]
	if !ok {
		return nil, false
	}
	n := a.nodes[id]
	return n, n != nil
}

// FindByCookie looks up the node currently holding an in-flight rename
// cookie.
func (a *Arena) FindByCookie(cookie uint32) (*Node, bool) {
	id, ok := a.byCookie[cookie]
	if !ok {
		return nil, false
	}
	n := a.nodes[id]
	return n, n != nil
}

// SetWatch arms the watch-id index for a Tree or Directory node. It is a
// no-op (and a bug in the caller) for File nodes, per invariant 2.
func (a *Arena) SetWatch(n *Node, watchID int32) {
	if n.Kind == KindFile {
		return
	}
	if n.WatchID != 0 {
		delete(a.byWatchID, n.WatchID)
	}
	n.WatchID = watchID
	if watchID != 0 {
		a.byWatchID[watchID] = n.ID
	}
}

// SetCookie opens or closes a rename pairing window for a node. Passing 0
// clears the cookie.
func (a *Arena) SetCookie(n *Node, cookie uint32) {
	if n.Cookie != 0 {
		delete(a.byCookie, n.Cookie)
	}
	n.Cookie = cookie
	if cookie != 0 {
		a.byCookie[cookie] = n.ID
	}
}

// Rebind moves a node to a new path, as happens when a MOVED_TO completes a
// rename pairing. It updates the path-hash index to match.
func (a *Arena) Rebind(n *Node, newAbsPath, newRelPath string) {
	delete(a.byPathHash, n.PathHash)
	n.AbsPath = newAbsPath
	n.RelPath = newRelPath
	n.PathHash = HashPath(newAbsPath)
	a.byPathHash[n.PathHash] = n.ID
}

// Drop removes a node from every collection it participates in and destroys
// it. After Drop returns, the id is no longer valid.
func (a *Arena) Drop(id NodeID) {
	n, ok := a.nodes[id]
	if !ok {
		return
	}
	delete(a.byPathHash, n.PathHash)
	if n.WatchID != 0 {
		delete(a.byWatchID, n.WatchID)
	}
	if n.Cookie != 0 {
		delete(a.byCookie, n.Cookie)
	}
	a.removeFromExpiration(id)
	delete(a.nodes, id)
}

// Len reports the number of live nodes, mostly useful for tests.
func (a *Arena) Len() int {
	return len(a.nodes)
}

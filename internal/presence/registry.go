package presence

// Register adds connID to the identity's set of live connections.
// Registering the same pair twice is a no-op. A connection registered under a
// different identity is moved.
func (ix *Index) Register(identity string, connID ConnID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.identityOf[connID]; ok && prev != identity {
		ix.unregisterLocked(prev, connID)
	}

	set, ok := ix.byIdentity[identity]
	if !ok {
		set = make(connSet)
		ix.byIdentity[identity] = set
	}
	set[connID] = struct{}{}
	ix.identityOf[connID] = identity
}

// Unregister removes connID from the identity. The identity entry disappears
// with its last connection. Unknown pairs are ignored.
func (ix *Index) Unregister(identity string, connID ConnID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.unregisterLocked(identity, connID)
}

func (ix *Index) unregisterLocked(identity string, connID ConnID) {
	set, ok := ix.byIdentity[identity]
	if !ok {
		return
	}
	if _, ok := set[connID]; !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(ix.byIdentity, identity)
	}
	delete(ix.identityOf, connID)
}

// ConnectionsFor returns a snapshot of the identity's live connections.
func (ix *Index) ConnectionsFor(identity string) []ConnID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return snapshot(ix.byIdentity[identity])
}

// IdentityOf reports the identity a connection is registered under.
func (ix *Index) IdentityOf(connID ConnID) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.identityOf[connID]
	return id, ok
}

// Online reports whether the identity has at least one live connection.
func (ix *Index) Online(identity string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byIdentity[identity]
	return ok
}

// Package presence keeps the in-memory indices of who is connected and which
// connections sit in which room.
//
// The Connection Registry (identity -> connections) and the Room Membership
// Table (room -> connections, connection -> rooms) share a single lock so a
// reader never observes one side of a change without the other.
package presence

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// ConnID identifies one live transport session.
type ConnID string

type connSet map[ConnID]struct{}

// Index is the lock-guarded home of both the registry and the membership table.
// The zero value is not usable; build it with NewIndex.
type Index struct {
	mu sync.RWMutex

	// registry
	byIdentity map[string]connSet
	identityOf map[ConnID]string

	// membership table
	members map[string]connSet             // roomID -> conns
	joined  map[ConnID]map[string]struct{} // conn -> roomIDs
}

func NewIndex() *Index {
	return &Index{
		byIdentity: make(map[string]connSet),
		identityOf: make(map[ConnID]string),
		members:    make(map[string]connSet),
		joined:     make(map[ConnID]map[string]struct{}),
	}
}

// snapshot returns the members of a set in a stable order.
func snapshot(s connSet) []ConnID {
	if len(s) == 0 {
		return []ConnID{}
	}
	ids := lo.Keys(s)
	slices.Sort(ids)
	return ids
}

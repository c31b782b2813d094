package presence

import (
	"slices"

	"github.com/samber/lo"
)

// Member pairs a connection with the identity it is registered under.
// Identity is empty for connections that never registered.
type Member struct {
	ConnID   ConnID `json:"connectionId"`
	Identity string `json:"identity"`
}

// Join puts connID into the room and records the room on the connection.
// Joining twice is a no-op; the result reports whether this call added it.
func (ix *Index) Join(roomID string, connID ConnID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.members[roomID][connID]; ok {
		return false
	}
	set, ok := ix.members[roomID]
	if !ok {
		set = make(connSet)
		ix.members[roomID] = set
	}
	set[connID] = struct{}{}

	rooms, ok := ix.joined[connID]
	if !ok {
		rooms = make(map[string]struct{})
		ix.joined[connID] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave is the inverse of Join. It reports whether connID was a member.
func (ix *Index) Leave(roomID string, connID ConnID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.leaveLocked(roomID, connID)
}

func (ix *Index) leaveLocked(roomID string, connID ConnID) bool {
	rooms, ok := ix.joined[connID]
	if !ok {
		return false
	}
	if _, ok := rooms[roomID]; !ok {
		return false
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(ix.joined, connID)
	}
	// Empty rooms stay in the table; retention belongs to the room registry.
	delete(ix.members[roomID], connID)
	return true
}

// LeaveAll removes connID from every room and returns the affected room ids,
// sorted.
func (ix *Index) LeaveAll(connID ConnID) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rooms := lo.Keys(ix.joined[connID])
	slices.Sort(rooms)
	for _, roomID := range rooms {
		ix.leaveLocked(roomID, connID)
	}
	return rooms
}

// MembersOf returns a snapshot of the room's connections.
func (ix *Index) MembersOf(roomID string) []ConnID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return snapshot(ix.members[roomID])
}

// MembersWithIdentity is MembersOf with each connection's identity attached,
// read under the same lock.
func (ix *Index) MembersWithIdentity(roomID string) []Member {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := snapshot(ix.members[roomID])
	return lo.Map(ids, func(id ConnID, _ int) Member {
		return Member{ConnID: id, Identity: ix.identityOf[id]}
	})
}

// RoomsOf returns the rooms connID has joined, sorted.
func (ix *Index) RoomsOf(connID ConnID) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rooms := lo.Keys(ix.joined[connID])
	slices.Sort(rooms)
	return rooms
}

// IsMember reports whether connID is currently joined to roomID.
func (ix *Index) IsMember(roomID string, connID ConnID) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.members[roomID][connID]
	return ok
}

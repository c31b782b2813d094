package presence

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireConsistent checks that room->members and conn->rooms describe the same
// relation.
func requireConsistent(t *testing.T, ix *Index) {
	t.Helper()
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	for roomID, set := range ix.members {
		for connID := range set {
			_, ok := ix.joined[connID][roomID]
			require.Truef(t, ok, "%s in room %s but room missing on connection", connID, roomID)
		}
	}
	for connID, rooms := range ix.joined {
		require.NotEmpty(t, rooms, "empty joined-room set kept for %s", connID)
		for roomID := range rooms {
			_, ok := ix.members[roomID][connID]
			require.Truef(t, ok, "room %s on %s but connection missing from room", roomID, connID)
		}
	}
	for identity, set := range ix.byIdentity {
		require.NotEmpty(t, set, "empty registry entry kept for %s", identity)
		for connID := range set {
			require.Equal(t, identity, ix.identityOf[connID])
		}
	}
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	req := require.New(t)
	ix := NewIndex()

	// Given alice has two devices
	ix.Register("alice", "c1")
	ix.Register("alice", "c2")
	ix.Register("alice", "c2")
	req.Equal([]ConnID{"c1", "c2"}, ix.ConnectionsFor("alice"))
	req.True(ix.Online("alice"))

	// When one device goes away
	ix.Unregister("alice", "c1")
	req.Equal([]ConnID{"c2"}, ix.ConnectionsFor("alice"))

	// And unknown pairs are ignored
	ix.Unregister("alice", "c9")
	ix.Unregister("nobody", "c2")
	req.Equal([]ConnID{"c2"}, ix.ConnectionsFor("alice"))

	// Then the last removal drops the entry entirely
	ix.Unregister("alice", "c2")
	req.Empty(ix.ConnectionsFor("alice"))
	req.False(ix.Online("alice"))
	_, ok := ix.byIdentity["alice"]
	req.False(ok)
	requireConsistent(t, ix)
}

func TestRegistry_ReRegisterMovesIdentity(t *testing.T) {
	req := require.New(t)
	ix := NewIndex()

	ix.Register("alice", "c1")
	ix.Register("bob", "c1")

	req.Empty(ix.ConnectionsFor("alice"))
	req.Equal([]ConnID{"c1"}, ix.ConnectionsFor("bob"))
	identity, ok := ix.IdentityOf("c1")
	req.True(ok)
	req.Equal("bob", identity)
	requireConsistent(t, ix)
}

func TestMembership_JoinLeave(t *testing.T) {
	req := require.New(t)
	ix := NewIndex()

	req.True(ix.Join("r1", "c1"))
	req.False(ix.Join("r1", "c1"))
	req.True(ix.Join("r1", "c2"))
	req.True(ix.Join("r2", "c1"))
	requireConsistent(t, ix)

	req.Equal([]ConnID{"c1", "c2"}, ix.MembersOf("r1"))
	req.Equal([]string{"r1", "r2"}, ix.RoomsOf("c1"))
	req.True(ix.IsMember("r2", "c1"))

	req.True(ix.Leave("r1", "c1"))
	req.False(ix.Leave("r1", "c1"))
	req.False(ix.Leave("nowhere", "c1"))
	requireConsistent(t, ix)

	req.Equal([]ConnID{"c2"}, ix.MembersOf("r1"))
	req.Equal([]string{"r2"}, ix.RoomsOf("c1"))

	// An emptied room is still a valid, empty room
	req.True(ix.Leave("r2", "c1"))
	req.Empty(ix.MembersOf("r2"))
	req.Empty(ix.RoomsOf("c1"))
	requireConsistent(t, ix)
}

func TestMembership_LeaveAllReturnsExactlyPriorRooms(t *testing.T) {
	req := require.New(t)
	ix := NewIndex()

	ix.Join("r1", "c1")
	ix.Join("r3", "c1")
	ix.Join("r2", "c2")
	ix.Join("r3", "c2")
	prior := ix.RoomsOf("c1")

	affected := ix.LeaveAll("c1")

	req.Equal(prior, affected)
	for _, roomID := range []string{"r1", "r2", "r3"} {
		req.NotContains(ix.MembersOf(roomID), ConnID("c1"))
	}
	req.Equal([]ConnID{"c2"}, ix.MembersOf("r3"))
	req.Empty(ix.LeaveAll("c1"))
	requireConsistent(t, ix)
}

func TestMembership_MembersWithIdentity(t *testing.T) {
	req := require.New(t)
	ix := NewIndex()

	ix.Register("alice", "c1")
	ix.Join("r1", "c1")
	ix.Join("r1", "c2")

	req.Equal([]Member{
		{ConnID: "c1", Identity: "alice"},
		{ConnID: "c2", Identity: ""},
	}, ix.MembersWithIdentity("r1"))
}

func TestMembership_RandomSequenceStaysConsistent(t *testing.T) {
	ix := NewIndex()
	rnd := rand.New(rand.NewSource(42))
	rooms := []string{"a", "b", "c"}
	conns := []ConnID{"c1", "c2", "c3", "c4"}

	// model: conn -> rooms
	model := map[ConnID]map[string]bool{}
	for _, c := range conns {
		model[c] = map[string]bool{}
	}

	for i := 0; i < 500; i++ {
		c := conns[rnd.Intn(len(conns))]
		r := rooms[rnd.Intn(len(rooms))]
		switch rnd.Intn(3) {
		case 0:
			ix.Join(r, c)
			model[c][r] = true
		case 1:
			ix.Leave(r, c)
			delete(model[c], r)
		case 2:
			got := ix.LeaveAll(c)
			require.Len(t, got, len(model[c]))
			for _, room := range got {
				require.True(t, model[c][room])
			}
			model[c] = map[string]bool{}
		}
		requireConsistent(t, ix)

		for _, room := range rooms {
			var want []ConnID
			for _, conn := range conns {
				if model[conn][room] {
					want = append(want, conn)
				}
			}
			require.ElementsMatch(t, want, ix.MembersOf(room), "step %d room %s", i, room)
		}
	}
}

func TestIndex_ConcurrentChurn(t *testing.T) {
	ix := NewIndex()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := ConnID(fmt.Sprintf("w%d-%d", w, i))
				identity := fmt.Sprintf("user-%d", i%5)
				ix.Register(identity, id)
				ix.Join("lobby", id)
				ix.Join(fmt.Sprintf("room-%d", i%3), id)
				_ = ix.MembersOf("lobby")
				ix.LeaveAll(id)
				ix.Unregister(identity, id)
			}
		}(w)
	}
	wg.Wait()

	require.Empty(t, ix.MembersOf("lobby"))
	require.Empty(t, ix.byIdentity)
	require.Empty(t, ix.joined)
	requireConsistent(t, ix)
}

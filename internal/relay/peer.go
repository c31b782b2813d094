package relay

import (
	"sync"

	"roomrelay/internal/presence"
)

// Peer is the transport end of a session.
//
// Deliver must not block: it queues the frame or fails with ErrPeerClosed /
// ErrPeerQueueFull. Frames from one caller are delivered in call order.
type Peer interface {
	Deliver(frame []byte) error
	Close() error
}

// directory maps live connection ids to their sessions.
type directory struct {
	mu       sync.RWMutex
	sessions map[presence.ConnID]*Session
}

func newDirectory() *directory {
	return &directory{sessions: make(map[presence.ConnID]*Session)}
}

func (d *directory) add(s *Session) {
	d.mu.Lock()
	d.sessions[s.id] = s
	d.mu.Unlock()
}

func (d *directory) remove(id presence.ConnID) {
	d.mu.Lock()
	delete(d.sessions, id)
	d.mu.Unlock()
}

func (d *directory) lookup(id presence.ConnID) (*Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	return s, ok
}

func (d *directory) all() []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

func (d *directory) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// deliver hands frame to the connection's peer. A connection that already left
// the directory counts as closed.
func (d *directory) deliver(id presence.ConnID, frame []byte) error {
	s, ok := d.lookup(id)
	if !ok {
		return ErrPeerClosed
	}
	return s.peer.Deliver(frame)
}

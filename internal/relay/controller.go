package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"roomrelay/internal/metrics"
	"roomrelay/internal/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handshake is what the transport knows about a connection at accept time.
type Handshake struct {
	Token      string
	RemoteAddr string
}

// Authenticator verifies a handshake and returns the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, hs Handshake) (string, error)
}

// MembershipRecorder persists that identity belongs to roomID.
type MembershipRecorder interface {
	RecordMembership(ctx context.Context, roomID, identity string) error
}

type Options struct {
	Recorder MembershipRecorder
	Fanout   RoomFanout

	// RecordTimeout bounds each durable membership write. Zero means 5s.
	RecordTimeout time.Duration

	Now func() time.Time
}

// Controller owns every session from accept to teardown and drives the
// registry, membership table, router and broadcaster at each transition.
type Controller struct {
	index  *presence.Index
	peers  *directory
	router *Router
	bcast  *Broadcaster

	auth          Authenticator
	recorder      MembershipRecorder
	fanout        RoomFanout
	recordTimeout time.Duration

	writes sync.WaitGroup // durable writes in flight
}

func NewController(ix *presence.Index, auth Authenticator, opts Options) *Controller {
	if opts.Fanout == nil {
		opts.Fanout = noopFanout{}
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	peers := newDirectory()
	return &Controller{
		index:         ix,
		peers:         peers,
		router:        newRouter(ix, peers),
		bcast:         newBroadcaster(ix, peers, opts.Fanout, opts.Now),
		auth:          auth,
		recorder:      opts.Recorder,
		fanout:        opts.Fanout,
		recordTimeout: opts.RecordTimeout,
	}
}

// Broadcaster exposes the relay's broadcaster, e.g. for cross-instance
// delivery.
func (c *Controller) Broadcaster() *Broadcaster { return c.bcast }

// Index exposes the presence index for read-only queries.
func (c *Controller) Index() *presence.Index { return c.index }

// Sessions reports how many authenticated sessions are open.
func (c *Controller) Sessions() int { return c.peers.count() }

// Open authenticates a freshly accepted connection. On failure nothing is
// registered anywhere and the error wraps ErrAuthFailure.
func (c *Controller) Open(ctx context.Context, peer Peer, hs Handshake) (*Session, error) {
	identity, err := c.auth.Authenticate(ctx, hs)
	if err != nil || identity == "" {
		metrics.AuthFailures.Inc()
		zap.L().Info("relay.auth_failed", zap.String("remote", hs.RemoteAddr), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	s := &Session{
		id:           presence.ConnID(uuid.NewString()),
		authIdentity: identity,
		state:        StateAuthenticated,
		peer:         peer,
		ctrl:         c,
	}
	c.peers.add(s)
	metrics.SessionsActive.Inc()

	if frame, err := Encode(EventWelcome, WelcomeBody{ConnectionID: s.id, Identity: identity}); err == nil {
		if err := peer.Deliver(frame); err != nil {
			zap.L().Debug("relay.welcome_undelivered", zap.String("conn_id", string(s.id)), zap.Error(err))
		}
	}
	zap.L().Debug("relay.session_open",
		zap.String("conn_id", string(s.id)),
		zap.String("identity", identity),
		zap.String("remote", hs.RemoteAddr),
	)
	return s, nil
}

// Shutdown closes every open session and waits for in-flight durable writes,
// or for ctx to end.
func (c *Controller) Shutdown(ctx context.Context) error {
	for _, s := range c.peers.all() {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		c.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) recordMembership(roomID, identity string) {
	if c.recorder == nil {
		return
	}
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.recordTimeout)
		defer cancel()

		if err := c.recorder.RecordMembership(ctx, roomID, identity); err != nil {
			metrics.DurableWriteFailures.Inc()
			zap.L().Warn("relay.record_membership",
				zap.String("room_id", roomID),
				zap.String("identity", identity),
				zap.Error(fmt.Errorf("%w: %w", ErrDurableWrite, err)),
			)
		}
	}()
}

// State is a session's lifecycle position.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one authenticated connection.
type Session struct {
	id           presence.ConnID
	authIdentity string
	peer         Peer
	ctrl         *Controller

	mu       sync.Mutex // serialises join/leave/close
	state    State
	identity string // assigned at first join
}

func (s *Session) ID() presence.ConnID { return s.id }

// Identity is the authenticated identity of the connection.
func (s *Session) Identity() string { return s.authIdentity }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join adds the session to roomID and returns the room's members, the joiner
// included. identity may be empty; otherwise it must match the authenticated
// identity. Joining a room twice is a no-op.
func (s *Session) Join(roomID, identity string) ([]presence.Member, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrInvalidRequest)
	}
	if identity == "" {
		identity = s.authIdentity
	}
	if identity != s.authIdentity {
		return nil, ErrIdentityMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, ErrSessionClosed
	}

	c := s.ctrl
	s.identity = identity
	c.index.Register(identity, s.id)
	added := c.index.Join(roomID, s.id)
	s.state = StateJoined
	members := c.index.MembersWithIdentity(roomID)

	if added {
		c.fanout.Subscribe(roomID)
		c.recordMembership(roomID, identity)
		c.bcast.AnnounceJoin(roomID, s.id, identity)
		zap.L().Info("relay.join",
			zap.String("room_id", roomID),
			zap.String("conn_id", string(s.id)),
			zap.String("identity", identity),
		)
	}
	return members, nil
}

// Leave removes the session from one room and announces the departure.
func (s *Session) Leave(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}

	c := s.ctrl
	if !c.index.Leave(roomID, s.id) {
		return ErrNotMember
	}
	c.fanout.Unsubscribe(roomID)
	c.bcast.AnnounceLeave(roomID, s.id)
	if len(c.index.RoomsOf(s.id)) == 0 {
		s.state = StateAuthenticated
	}
	return nil
}

// SendChat broadcasts text to roomID, echoing it back to the sender.
func (s *Session) SendChat(roomID, text string) (ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ChatMessage{}, ErrSessionClosed
	}
	if !s.ctrl.index.IsMember(roomID, s.id) {
		return ChatMessage{}, ErrNotMember
	}
	return s.ctrl.bcast.SendChat(roomID, s.id, s.identity, text)
}

// SendSignal relays payload to every live connection of targetIdentity.
func (s *Session) SendSignal(targetIdentity string, payload json.RawMessage) (int, error) {
	if s.State() == StateClosed {
		return 0, ErrSessionClosed
	}
	return s.ctrl.router.Relay(s.id, s.authIdentity, targetIdentity, payload)
}

// SendSignalTo relays payload to a single connection.
func (s *Session) SendSignalTo(target presence.ConnID, payload json.RawMessage) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	return s.ctrl.router.RelayTo(s.id, s.authIdentity, target, payload)
}

// Reply queues a frame for this session only.
func (s *Session) Reply(event string, body any) error {
	frame, err := Encode(event, body)
	if err != nil {
		return err
	}
	return s.peer.Deliver(frame)
}

// Close tears the session down: leave every room, announce each departure,
// unregister the identity, then close the peer. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed

	c := s.ctrl
	rooms := c.index.LeaveAll(s.id)
	for _, roomID := range rooms {
		c.fanout.Unsubscribe(roomID)
		c.bcast.AnnounceLeave(roomID, s.id)
	}
	if s.identity != "" {
		c.index.Unregister(s.identity, s.id)
	}
	c.peers.remove(s.id)
	s.mu.Unlock()

	metrics.SessionsActive.Dec()
	if err := s.peer.Close(); err != nil {
		zap.L().Debug("relay.peer_close", zap.String("conn_id", string(s.id)), zap.Error(err))
	}
	zap.L().Debug("relay.session_closed",
		zap.String("conn_id", string(s.id)),
		zap.Strings("rooms", rooms),
	)
}

package relay

import (
	"context"
	"sync"
	"time"

	"roomrelay/internal/metrics"
	"roomrelay/internal/presence"

	"go.uber.org/zap"
)

// RoomFanout carries room frames to other relay instances. Subscribe and
// Unsubscribe are reference counted per room.
type RoomFanout interface {
	Publish(ctx context.Context, roomID string, frame []byte) error
	Subscribe(roomID string)
	Unsubscribe(roomID string)
}

type noopFanout struct{}

func (noopFanout) Publish(context.Context, string, []byte) error { return nil }
func (noopFanout) Subscribe(string)                              {}
func (noopFanout) Unsubscribe(string)                            {}

const publishTimeout = 2 * time.Second

// Broadcaster delivers room-scoped events to every member of a room.
//
// Broadcasts of one room are dispatched one at a time so all members observe
// the same order. Recipients are snapshotted from the index and delivery
// happens outside the index lock.
type Broadcaster struct {
	index  *presence.Index
	peers  *directory
	fanout RoomFanout
	now    func() time.Time

	order sync.Map // roomID -> *sync.Mutex
}

func newBroadcaster(ix *presence.Index, peers *directory, fanout RoomFanout, now func() time.Time) *Broadcaster {
	return &Broadcaster{index: ix, peers: peers, fanout: fanout, now: now}
}

// AnnounceJoin tells every member but the joiner that connID arrived.
func (b *Broadcaster) AnnounceJoin(roomID string, connID presence.ConnID, identity string) {
	b.emit(roomID, EventParticipantJoined, ParticipantJoinedBody{
		RoomID:       roomID,
		ConnectionID: connID,
		Identity:     identity,
	}, connID)
}

// AnnounceLeave tells the remaining members that connID is gone. The caller
// removes connID from the room first.
func (b *Broadcaster) AnnounceLeave(roomID string, connID presence.ConnID) {
	b.emit(roomID, EventParticipantLeft, ParticipantLeftBody{
		RoomID:       roomID,
		ConnectionID: connID,
	}, "")
}

// SendChat stamps the message and delivers the same frame to the whole room,
// sender included.
func (b *Broadcaster) SendChat(roomID string, sender presence.ConnID, identity, text string) (ChatMessage, error) {
	msg := ChatMessage{
		RoomID:          roomID,
		Text:            text,
		Identity:        identity,
		ServerTimestamp: b.now().UTC(),
	}
	frame, err := Encode(EventChatMessage, msg)
	if err != nil {
		return ChatMessage{}, err
	}
	b.dispatch(roomID, EventChatMessage, frame, "")
	zap.L().Debug("relay.chat",
		zap.String("room_id", roomID),
		zap.String("conn_id", string(sender)),
	)
	return msg, nil
}

// DeliverLocal hands a frame that originated on another instance to every
// local member of the room.
func (b *Broadcaster) DeliverLocal(roomID string, frame []byte) int {
	mu := b.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()
	return b.deliver(roomID, frame, "")
}

func (b *Broadcaster) emit(roomID, event string, body any, except presence.ConnID) {
	frame, err := Encode(event, body)
	if err != nil {
		zap.L().Error("relay.encode", zap.String("event", event), zap.Error(err))
		return
	}
	b.dispatch(roomID, event, frame, except)
}

// dispatch delivers locally and publishes under the room's order lock, so
// local members and other instances see the room's events in one order.
func (b *Broadcaster) dispatch(roomID, event string, frame []byte, except presence.ConnID) {
	mu := b.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	metrics.Broadcasts.WithLabelValues(event).Inc()
	b.deliver(roomID, frame, except)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.fanout.Publish(ctx, roomID, frame); err != nil {
		zap.L().Warn("relay.fanout_publish", zap.String("room_id", roomID), zap.Error(err))
	}
}

// deliver requires the room's order lock.
func (b *Broadcaster) deliver(roomID string, frame []byte, except presence.ConnID) int {
	delivered := 0
	for _, id := range b.index.MembersOf(roomID) {
		if id == except {
			continue
		}
		if err := b.peers.deliver(id, frame); err != nil {
			metrics.DeliveryFailures.Inc()
			zap.L().Warn("relay.delivery_failed",
				zap.String("room_id", roomID),
				zap.String("conn_id", string(id)),
				zap.Error(ErrDelivery),
				zap.NamedError("cause", err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) roomLock(roomID string) *sync.Mutex {
	v, _ := b.order.LoadOrStore(roomID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

package ws

import (
	"context"
	"encoding/json"

	"roomrelay/internal/relay"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func roomChannel(roomID string) string { return "room:" + roomID + ":events" }

// busMessage is what travels on a room channel. Frame is the already encoded
// client envelope.
type busMessage struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

func encodeBusMessage(origin string, frame []byte) ([]byte, error) {
	return json.Marshal(busMessage{Origin: origin, Frame: frame})
}

// LocalDeliverer hands a frame to this instance's members of a room.
type LocalDeliverer interface {
	DeliverLocal(roomID string, frame []byte) int
}

// RoomBus mirrors room broadcasts between relay instances over Redis pub/sub.
// Signals never go through it.
type RoomBus struct {
	rdb    *redis.Client
	origin string
	subs   *subscriptionManager
	sink   LocalDeliverer
}

var _ relay.RoomFanout = (*RoomBus)(nil)

func NewRoomBus(rdb *redis.Client, origin string) *RoomBus {
	b := &RoomBus{rdb: rdb, origin: origin}
	b.subs = newSubscriptionManager(redisSubscriber(rdb), b.handle)
	return b
}

// Attach sets where remote frames are delivered. Call it before the first
// connection is accepted.
func (b *RoomBus) Attach(sink LocalDeliverer) { b.sink = sink }

func (b *RoomBus) Publish(ctx context.Context, roomID string, frame []byte) error {
	payload, err := encodeBusMessage(b.origin, frame)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, roomChannel(roomID), payload).Err()
}

func (b *RoomBus) Subscribe(roomID string)   { b.subs.Subscribe(roomID) }
func (b *RoomBus) Unsubscribe(roomID string) { b.subs.Unsubscribe(roomID) }

// Close drops every room subscription.
func (b *RoomBus) Close() { b.subs.closeAll() }

func (b *RoomBus) handle(roomID, payload string) {
	var m busMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		zap.L().Warn("ws.bus_decode_failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	if m.Origin == b.origin || b.sink == nil {
		return
	}
	b.sink.DeliverLocal(roomID, m.Frame)
}

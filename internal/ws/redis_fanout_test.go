package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type sinkCall struct {
	roomID string
	frame  string
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordingSink) DeliverLocal(roomID string, frame []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{roomID: roomID, frame: string(frame)})
	return 1
}

func (s *recordingSink) snapshot() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

func TestRoomBus_Publish(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	bus := NewRoomBus(rdb, "relay-a")

	frame := []byte(`{"event":"chat-message","body":{"text":"hi"}}`)
	payload, err := encodeBusMessage("relay-a", frame)
	require.NoError(t, err)

	mock.ExpectPublish("room:r1:events", payload).SetVal(1)
	require.NoError(t, bus.Publish(context.Background(), "r1", frame))

	mock.ExpectPublish("room:r2:events", payload).SetErr(errors.New("down"))
	require.Error(t, bus.Publish(context.Background(), "r2", frame))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomBus_HandleSkipsOwnOrigin(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	bus := NewRoomBus(rdb, "relay-a")
	sink := &recordingSink{}
	bus.Attach(sink)

	own, err := encodeBusMessage("relay-a", []byte(`{"event":"x"}`))
	require.NoError(t, err)
	remote, err := encodeBusMessage("relay-b", []byte(`{"event":"y"}`))
	require.NoError(t, err)

	bus.handle("r1", string(own))
	bus.handle("r1", "not json")
	bus.handle("r1", string(remote))

	require.Equal(t, []sinkCall{{roomID: "r1", frame: `{"event":"y"}`}}, sink.snapshot())
}

// fakeSubscriber hands out one Go channel per Redis channel name.
type fakeSubscriber struct {
	mu     sync.Mutex
	chans  map[string]chan *redis.Message
	opened int
	closed int
}

func (f *fakeSubscriber) subscribe(_ context.Context, channel string) (<-chan *redis.Message, func() error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan *redis.Message, 4)
	f.chans[channel] = ch
	f.opened++
	return ch, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed++
		return nil
	}
}

func (f *fakeSubscriber) push(channel, payload string) {
	f.mu.Lock()
	ch := f.chans[channel]
	f.mu.Unlock()
	ch <- &redis.Message{Channel: channel, Payload: payload}
}

func (f *fakeSubscriber) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

func TestSubscriptionManager_RefCounting(t *testing.T) {
	fs := &fakeSubscriber{chans: map[string]chan *redis.Message{}}
	got := make(chan string, 4)
	sm := newSubscriptionManager(fs.subscribe, func(roomID, payload string) {
		got <- roomID + "|" + payload
	})

	sm.Subscribe("r1")
	sm.Subscribe("r1")
	require.Equal(t, 2, sm.refCount("r1"))
	opened, _ := fs.counts()
	require.Equal(t, 1, opened)

	fs.push("room:r1:events", "hello")
	select {
	case msg := <-got:
		require.Equal(t, "r1|hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not handled")
	}

	sm.Unsubscribe("r1")
	require.Equal(t, 1, sm.refCount("r1"))
	_, closed := fs.counts()
	require.Zero(t, closed)

	sm.Unsubscribe("r1")
	require.Zero(t, sm.refCount("r1"))
	require.Eventually(t, func() bool {
		_, closed := fs.counts()
		return closed == 1
	}, 2*time.Second, 10*time.Millisecond)

	// unknown rooms are ignored
	sm.Unsubscribe("r9")
}

func TestSubscriptionManager_CloseAll(t *testing.T) {
	fs := &fakeSubscriber{chans: map[string]chan *redis.Message{}}
	sm := newSubscriptionManager(fs.subscribe, func(string, string) {})

	sm.Subscribe("r1")
	sm.Subscribe("r2")
	sm.closeAll()

	opened, closed := fs.counts()
	require.Equal(t, 2, opened)
	require.Equal(t, 2, closed)
	require.Zero(t, sm.refCount("r1"))
}

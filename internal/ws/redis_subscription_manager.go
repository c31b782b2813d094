package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// subscribeFunc opens a channel subscription; the returned func releases it.
type subscribeFunc func(ctx context.Context, channel string) (<-chan *redis.Message, func() error)

func redisSubscriber(rdb *redis.Client) subscribeFunc {
	return func(ctx context.Context, channel string) (<-chan *redis.Message, func() error) {
		ps := rdb.Subscribe(ctx, channel)
		return ps.Channel(), ps.Close
	}
}

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per "room:<id>:events" channel ― no matter how many local
// connections are in the same room.
type subscriptionManager struct {
	subscribe subscribeFunc
	handle    func(roomID, payload string)
	mu        sync.Mutex
	subs      map[string]*subEntry // roomID ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
	done   chan struct{}
}

func newSubscriptionManager(subscribe subscribeFunc, handle func(roomID, payload string)) *subscriptionManager {
	return &subscriptionManager{
		subscribe: subscribe,
		handle:    handle,
		subs:      make(map[string]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the room's channel;
// subsequent calls for the same room only increment the ref‑counter.
func (sm *subscriptionManager) Subscribe(roomID string) {
	sm.mu.Lock()
	if e, ok := sm.subs[roomID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First consumer → create Redis SUB and fan‑out loop.
	ctx, cancel := context.WithCancel(context.Background())
	msgs, closeSub := sm.subscribe(ctx, roomChannel(roomID))

	e := &subEntry{refCnt: 1, cancel: cancel, done: make(chan struct{})}
	sm.subs[roomID] = e
	sm.mu.Unlock()

	go func() {
		defer close(e.done)
		defer closeSub()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok { // Redis connection closed.
					return
				}
				sm.handle(roomID, m.Payload)
			}
		}
	}()
}

// Unsubscribe decrements the ref‑counter and tears the Redis SUB down when the
// last local member leaves the room.
func (sm *subscriptionManager) Unsubscribe(roomID string) {
	sm.mu.Lock()
	e, ok := sm.subs[roomID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, roomID)
	sm.mu.Unlock()

	// Outside the lock → stop the fan‑out goroutine.
	e.cancel()
}

// closeAll cancels every subscription and waits for the loops to exit.
func (sm *subscriptionManager) closeAll() {
	sm.mu.Lock()
	entries := make([]*subEntry, 0, len(sm.subs))
	for id, e := range sm.subs {
		entries = append(entries, e)
		delete(sm.subs, id)
	}
	sm.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		<-e.done
	}
}

func (sm *subscriptionManager) refCount(roomID string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if e, ok := sm.subs[roomID]; ok {
		return e.refCnt
	}
	return 0
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/store"
	"github.com/aura-webinar/portal/internal/store/storetest"
)

func newClient(h *Hub, id, sessionID string) *Client {
	return &Client{ID: id, SessionID: sessionID, hub: h, send: make(chan WSMessage, 16)}
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func keys(t *testing.T, msgs []WSMessage) []string {
	t.Helper()
	var out []string
	for _, m := range msgs {
		require.Equal(t, EventStoreUpdated, m.Event)
		var u StoreUpdate
		require.NoError(t, json.Unmarshal(m.Data, &u))
		out = append(out, u.Key)
	}
	return out
}

func TestHub_StoreChangesReachOnlyThatSession(t *testing.T) {
	h := NewHub(nil, nil, nil)
	mine := newClient(h, "c1", "s1")
	other := newClient(h, "c2", "s2")
	h.Register(mine)
	h.Register(other)

	st := store.New(storetest.New(), nil)
	h.Attach("s1", st)
	require.NoError(t, st.FetchUpcomingWebinars(context.Background()))

	assert.Contains(t, keys(t, drain(mine)), store.KeyUpcoming)
	assert.Empty(t, drain(other))
}

func TestHub_UnregisterClosesRoom(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a := newClient(h, "a", "s1")
	b := newClient(h, "b", "s1")
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.Connections("s1"))

	h.Unregister(a)
	h.Broadcast("s1", EventStoreUpdated, StoreUpdate{Key: store.KeyTickets})
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)

	h.Unregister(b)
	assert.Equal(t, 0, h.Connections("s1"))
}

type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]func(string, []byte)
	cancelled []string
	published int
	failNext  bool
	// onSubscribe runs before the handler is stored.
	onSubscribe func(sessionID string)
}

func (f *fakeBus) PublishSessionEvent(sessionID, event string, payload []byte) error {
	f.mu.Lock()
	if f.failNext {
		f.failNext = false
		f.mu.Unlock()
		return errors.New("redis down")
	}
	f.published++
	fn := f.handlers[sessionID]
	f.mu.Unlock()
	if fn != nil {
		fn(event, payload)
	}
	return nil
}

func (f *fakeBus) SubscribeSession(sessionID string, handler func(string, []byte)) (func(), error) {
	if f.onSubscribe != nil {
		f.onSubscribe(sessionID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[sessionID] = handler
	return func() {
		f.mu.Lock()
		delete(f.handlers, sessionID)
		f.cancelled = append(f.cancelled, sessionID)
		f.mu.Unlock()
	}, nil
}

func TestHub_PublishGoesThroughBusOnce(t *testing.T) {
	bus := &fakeBus{handlers: make(map[string]func(string, []byte))}
	h := NewHub(nil, bus, bus)
	c := newClient(h, "c1", "s1")
	h.Register(c)

	h.Publish("s1", EventStoreUpdated, StoreUpdate{Key: store.KeyApplications})
	assert.Equal(t, []string{store.KeyApplications}, keys(t, drain(c)))

	bus.failNext = true
	h.Publish("s1", EventStoreUpdated, StoreUpdate{Key: store.KeyTickets})
	assert.Equal(t, []string{store.KeyTickets}, keys(t, drain(c)), "falls back to local delivery")

	h.Unregister(c)
	assert.Equal(t, []string{"s1"}, bus.cancelled)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "portal:session:abc", Channel("abc"))
}

func TestHub_IgnoredStoreIsNotAttached(t *testing.T) {
	bus := &fakeBus{handlers: make(map[string]func(string, []byte))}
	h := NewHub(nil, bus, bus)
	h.Ignore("anonymous")

	st := store.New(storetest.New(), nil)
	h.Attach("anonymous", st)
	require.NoError(t, st.FetchUpcomingWebinars(context.Background()))
	assert.Zero(t, bus.published)

	own := store.New(storetest.New(), nil)
	h.Attach("s1", own)
	require.NoError(t, own.FetchUpcomingWebinars(context.Background()))
	assert.NotZero(t, bus.published)
}

func TestHub_SubscribeRunsOutsideLock(t *testing.T) {
	bus := &fakeBus{handlers: make(map[string]func(string, []byte))}
	h := NewHub(nil, bus, bus)
	seen := -1
	bus.onSubscribe = func(sessionID string) {
		// Takes the hub lock; would deadlock if Register still held it.
		seen = h.Connections(sessionID)
	}

	done := make(chan struct{})
	go func() {
		h.Register(newClient(h, "c1", "s1"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked while subscribing")
	}
	assert.Equal(t, 1, seen)
}

func TestHub_RoomEmptiedWhileSubscribingCancels(t *testing.T) {
	bus := &fakeBus{handlers: make(map[string]func(string, []byte))}
	h := NewHub(nil, bus, bus)
	c := newClient(h, "c1", "s1")
	bus.onSubscribe = func(string) { h.Unregister(c) }

	h.Register(c)
	assert.Equal(t, 0, h.Connections("s1"))
	assert.Equal(t, []string{"s1"}, bus.cancelled)
	assert.Empty(t, bus.handlers)
}

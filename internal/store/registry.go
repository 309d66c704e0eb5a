package store

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackendFactory builds a backend authenticated as the session's token.
type BackendFactory func(token string) Backend

// Registry holds one Store per session and evicts stores that sat idle longer than ttl.
type Registry struct {
	factory BackendFactory
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	onNew   func(sessionID string, s *Store)

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	store    *Store
	token    string
	lastSeen time.Time
}

// NewRegistry creates a registry. A zero ttl disables idle eviction.
func NewRegistry(factory BackendFactory, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// OnNewStore registers a hook run whenever a store is created for a session.
func (r *Registry) OnNewStore(fn func(sessionID string, s *Store)) {
	r.mu.Lock()
	r.onNew = fn
	r.mu.Unlock()
}

// Get returns the session's store, creating it on first use. A changed token (re-login) replaces it.
func (r *Registry) Get(sessionID, token string) *Store {
	r.mu.Lock()
	now := r.now()
	r.evictLocked(now)
	if e, ok := r.entries[sessionID]; ok && e.token == token {
		e.lastSeen = now
		r.mu.Unlock()
		return e.store
	}
	s := New(r.factory(token), r.logger.With(zap.String("session_id", sessionID)))
	r.entries[sessionID] = &entry{store: s, token: token, lastSeen: now}
	onNew := r.onNew
	r.mu.Unlock()

	if onNew != nil {
		onNew(sessionID, s)
	}
	return s
}

// Drop forgets a session's store (logout).
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) evictLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.entries, id)
			r.logger.Debug("store evicted", zap.String("session_id", id))
		}
	}
}

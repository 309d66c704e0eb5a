package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextKey is the gin context key holding the request's *Session.
const ContextKey = "portal_session"

// Manager binds sessions to requests through a cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie string
	secure bool
	logger *zap.Logger
}

// NewManager creates a manager. Sessions live for ttl after their last save.
func NewManager(store Store, cookie string, ttl time.Duration, secure bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, cookie: cookie, secure: secure, logger: logger}
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Load restores the request's session from its cookie, or starts an anonymous one that is not
// persisted until Save.
func (m *Manager) Load(c *gin.Context) *Session {
	if id, err := c.Cookie(m.cookie); err == nil && id != "" {
		s, err := m.store.Get(c.Request.Context(), id)
		switch {
		case err == nil && !s.Expired(time.Now()):
			return s
		case err != nil && !errors.Is(err, ErrNotFound):
			m.logger.Warn("session load failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return New(m.ttl)
}

// Save persists s and refreshes the cookie.
func (m *Manager) Save(c *gin.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(m.ttl)
	if err := m.store.Save(c.Request.Context(), s, m.ttl); err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, s.ID, int(m.ttl.Seconds()), "/", "", m.secure, true)
	return nil
}

// Destroy deletes s and expires the cookie.
func (m *Manager) Destroy(c *gin.Context, s *Session) error {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, "", -1, "/", "", m.secure, true)
	return m.store.Delete(c.Request.Context(), s.ID)
}

// Current returns the session placed on c by the session middleware, or nil.
func Current(c *gin.Context) *Session {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

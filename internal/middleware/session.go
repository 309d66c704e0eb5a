package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/internal/session"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// StoreDropper forgets a session's cached webinar state.
type StoreDropper interface {
	Drop(sessionID string)
}

// Session restores the viewer's session from its cookie and sets user claims in context.
// A session whose upstream token has expired is signed out before the handler runs.
func Session(m *session.Manager, tokens *auth.TokenInspector, stores StoreDropper, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.Load(c)
		if s.IsAuthenticated() {
			if _, err := tokens.Inspect(s.Token); err != nil {
				if !errors.Is(err, auth.ErrExpiredToken) {
					logger.Warn("dropping session with unreadable token", zap.String("session_id", s.ID), zap.Error(err))
				}
				s.SignOut()
				if stores != nil {
					stores.Drop(s.ID)
				}
				if err := m.Save(c, s); err != nil {
					logger.Warn("session save failed", zap.String("session_id", s.ID), zap.Error(err))
				}
			}
		}
		c.Set(session.ContextKey, s)
		if s.User != nil {
			c.Set(ContextUserID, s.User.ID)
			c.Set(ContextUserRole, string(s.User.Role))
			c.Set(ContextUserEmail, s.User.Email)
		}
		c.Next()
	}
}

// Package session persists the viewer's authentication across page loads: the upstream token,
// the signed-in user and any checkout left in progress.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/registrations"
)

// ErrNotFound is returned when no live session exists for an ID.
var ErrNotFound = errors.New("session not found")

// Session is one browser's state on the gateway.
type Session struct {
	ID                   string                                   `json:"id"`
	Token                string                                   `json:"token,omitempty"`
	User                 *models.UserPublic                       `json:"user,omitempty"`
	ExpiresAt            time.Time                                `json:"expires_at"`
	PendingCheckouts     map[string]registrations.PendingCheckout `json:"pending_checkouts,omitempty"`
	PendingOTPEmail      string                                   `json:"pending_otp_email,omitempty"`
	OTPResendAvailableAt time.Time                                `json:"otp_resend_available_at,omitempty"`
}

// New returns an anonymous session expiring after ttl.
func New(ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl),
	}
}

// IsAuthenticated reports whether the session holds an upstream token.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// Role returns the signed-in user's role, empty when anonymous.
func (s *Session) Role() models.Role {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Role
}

// SignIn stores the token and user, clearing pending OTP state.
func (s *Session) SignIn(token string, user *models.UserPublic) {
	s.Token = token
	s.User = user
	s.PendingOTPEmail = ""
	s.OTPResendAvailableAt = time.Time{}
}

// SignOut clears authentication and any pending checkouts.
func (s *Session) SignOut() {
	s.Token = ""
	s.User = nil
	s.PendingCheckouts = nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// PendingCheckout implements registrations.CheckoutTracker.
func (s *Session) PendingCheckout(webinarID string) (registrations.PendingCheckout, bool) {
	pc, ok := s.PendingCheckouts[webinarID]
	return pc, ok
}

// PutCheckout implements registrations.CheckoutTracker.
func (s *Session) PutCheckout(pc registrations.PendingCheckout) {
	if s.PendingCheckouts == nil {
		s.PendingCheckouts = make(map[string]registrations.PendingCheckout)
	}
	s.PendingCheckouts[pc.WebinarID] = pc
}

// RemoveCheckout implements registrations.CheckoutTracker.
func (s *Session) RemoveCheckout(webinarID string) {
	delete(s.PendingCheckouts, webinarID)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

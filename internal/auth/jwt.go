package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aura-webinar/portal/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims holds the upstream token claims the gateway reads.
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// User builds the public user view from the claims.
func (c *Claims) User() *models.UserPublic {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return &models.UserPublic{ID: id, Email: c.Email, FullName: c.FullName, Role: models.ParseRole(c.Role)}
}

// TokenInspector reads upstream bearer tokens. The upstream API is the authority on token
// validity; without a shared secret the gateway only decodes claims to learn role and expiry.
type TokenInspector struct {
	secret []byte
	now    func() time.Time
}

// NewTokenInspector creates an inspector. An empty secret disables signature checks.
func NewTokenInspector(secret string) *TokenInspector {
	t := &TokenInspector{now: time.Now}
	if secret != "" {
		t.secret = []byte(secret)
	}
	return t
}

// Inspect returns the token's claims, or ErrExpiredToken / ErrInvalidToken.
func (t *TokenInspector) Inspect(tokenString string) (*Claims, error) {
	if t.secret != nil {
		return t.validate(tokenString)
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !t.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

func (t *TokenInspector) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/internal/registrations"
)

var _ registrations.CheckoutTracker = (*Session)(nil)

func TestFileStore_RoundTripAndDelete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "secret")
	require.NoError(t, err)
	ctx := context.Background()

	s := New(time.Hour)
	s.SignIn("tok", &models.UserPublic{ID: "u1", Email: "a@x.io", Role: models.RoleAdmin})
	s.PutCheckout(registrations.PendingCheckout{WebinarID: "w1", Reference: "ref-1"})
	require.NoError(t, fs.Save(ctx, s, time.Hour))

	got, err := fs.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, models.RoleAdmin, got.Role())
	pc, ok := got.PendingCheckout("w1")
	require.True(t, ok)
	assert.Equal(t, "ref-1", pc.Reference)

	require.NoError(t, fs.Delete(ctx, s.ID))
	_, err = fs.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SealedAtRest(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "secret")
	require.NoError(t, err)

	s := New(time.Hour)
	s.SignIn("very-secret-token", nil)
	require.NoError(t, fs.Save(context.Background(), s, time.Hour))

	raw, err := os.ReadFile(filepath.Join(dir, s.ID+".session"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-token")

	other, err := NewFileStore(dir, "another-secret")
	require.NoError(t, err)
	_, err = other.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_Expiry(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "secret")
	require.NoError(t, err)
	clock := time.Now()
	fs.now = func() time.Time { return clock }

	s := New(time.Minute)
	require.NoError(t, fs.Save(context.Background(), s, time.Minute))
	clock = clock.Add(2 * time.Minute)

	_, err = fs.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "secret")
	require.NoError(t, err)

	_, err = fs.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_SignOutClearsCheckouts(t *testing.T) {
	s := New(time.Hour)
	s.SignIn("tok", &models.UserPublic{Role: models.RoleUser})
	s.PutCheckout(registrations.PendingCheckout{WebinarID: "w1"})

	s.SignOut()

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, models.Role(""), s.Role())
	_, ok := s.PendingCheckout("w1")
	assert.False(t, ok)
}

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ErrCorrupt is returned when a session file cannot be opened with the configured secret.
var ErrCorrupt = errors.New("session file corrupt or sealed with another secret")

type fileRecord struct {
	Session   *Session  `json:"session"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore keeps one secretbox-sealed file per session, for single-instance deployments
// without Redis.
type FileStore struct {
	dir string
	key [32]byte
	now func() time.Time
	mu  sync.Mutex
}

// NewFileStore creates dir if needed. The sealing key is derived from secret.
func NewFileStore(dir, secret string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "portal-sessions")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir, key: sha256.Sum256([]byte(secret)), now: time.Now}, nil
}

func (f *FileStore) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", ErrNotFound
	}
	return filepath.Join(f.dir, id+".session"), nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	sealed, err := os.ReadFile(p)
	f.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(sealed) < 24 {
		return nil, ErrCorrupt
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &f.key)
	if !ok {
		return nil, ErrCorrupt
	}
	var rec fileRecord
	if err := json.Unmarshal(plain, &rec); err != nil || rec.Session == nil {
		return nil, ErrCorrupt
	}
	if !rec.ExpiresAt.IsZero() && f.now().After(rec.ExpiresAt) {
		_ = f.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return rec.Session, nil
}

func (f *FileStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	p, err := f.path(s.ID)
	if err != nil {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	rec := fileRecord{Session: s}
	if ttl > 0 {
		rec.ExpiresAt = f.now().Add(ttl)
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("session nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &f.key)

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

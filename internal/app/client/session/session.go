// Package session holds the single bearer token and the derived logged-in
// state. The token is persisted in the store's key-value table; the in-memory
// copy exists for synchronous checks.
package session

import (
	"context"
	"errors"
	"sync"

	"storykeeper/internal/app/client/storage"
)

type Session struct {
	store storage.Storage
	mu    sync.RWMutex
	token string
}

// Load reads any persisted token. A missing token is not an error: it just
// means nobody is logged in.
func Load(ctx context.Context, store storage.Storage) (*Session, error) {
	s := &Session{store: store}

	token, err := store.GetValue(ctx, storage.KeyToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s, nil
		}
		return nil, err
	}

	s.token = token
	return s, nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// SetToken stores the token durably and in memory.
func (s *Session) SetToken(ctx context.Context, token string) error {
	if err := s.store.SetValue(ctx, storage.KeyToken, token); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear drops the token from memory and from the store. The in-memory state
// is cleared even if the durable delete fails, so a detected expiry always
// takes effect immediately.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	return s.store.DeleteValue(ctx, storage.KeyToken)
}

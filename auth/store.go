package auth

import (
	"context"
	"sync"
)

type TokenStore interface {
	Load(ctx context.Context) (TokenSet, bool, error)
	Save(ctx context.Context, tokens TokenSet) error
	Clear(ctx context.Context) error
}

type MemoryTokenStore struct {
	mu    sync.RWMutex
	valid bool
	token TokenSet
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (TokenSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.valid {
		return TokenSet{}, false, nil
	}

	return s.token.Clone(), true, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, tokens TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = tokens.Clone()
	s.valid = true

	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = TokenSet{}
	s.valid = false

	return nil
}

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clipstream/backend/internal/models"
)

// NewInMemoryTokenStore returns a RefreshTokenStore backed by an in-memory map.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]models.RefreshToken)}
}

// InMemoryTokenStore implements RefreshTokenStore for tests and local development.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens map[string]models.RefreshToken
}

// Save persists a new token. Token strings are unique.
func (s *InMemoryTokenStore) Save(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.Token]; exists {
		return errors.New("duplicate refresh token")
	}
	s.nextID++
	token.ID = s.nextID
	s.tokens[token.Token] = token
	return nil
}

// Consume revokes a usable token and returns it.
func (s *InMemoryTokenStore) Consume(_ context.Context, token string, now time.Time) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok || !stored.Usable(now) {
		return models.RefreshToken{}, ErrTokenNotFound
	}
	stored.IsRevoked = true
	s.tokens[token] = stored
	return stored, nil
}

// RevokeOwned revokes a usable token when it belongs to userID.
func (s *InMemoryTokenStore) RevokeOwned(_ context.Context, userID, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok || stored.UserID != userID || !stored.Usable(now) {
		return ErrTokenNotFound
	}
	stored.IsRevoked = true
	s.tokens[token] = stored
	return nil
}

// RevokeAllForUser flags every token of the user as revoked and reports how many changed.
func (s *InMemoryTokenStore) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, token := range s.tokens {
		if token.UserID != userID || token.IsRevoked {
			continue
		}
		token.IsRevoked = true
		s.tokens[key] = token
		n++
	}
	return n, nil
}

// DeleteExpired removes tokens whose expiry lies before now.
func (s *InMemoryTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, token := range s.tokens {
		if token.ExpiresAt.Before(now) {
			delete(s.tokens, key)
			n++
		}
	}
	return n, nil
}

// Get returns a stored token. Useful for tests.
func (s *InMemoryTokenStore) Get(token string) (models.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	return stored, ok
}

// Put stores a token verbatim, bypassing uniqueness checks. Useful for tests.
func (s *InMemoryTokenStore) Put(token models.RefreshToken) {
	s.mu.Lock()
	s.tokens[token.Token] = token
	s.mu.Unlock()
}

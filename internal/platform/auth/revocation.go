package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationStore tracks revoked tokens (logout) and accounts whose tokens
// issued before a point in time must be rejected (blocking, deletion).
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	RevokeUser(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	UserRevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}

type revocationEntry struct {
	At        time.Time
	ExpiresAt time.Time
}

// TokenRevocationStore is the in-process RevocationStore used when no Redis
// is configured. Expired entries are purged every five minutes.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocationEntry // JTI -> entry
	users   map[string]revocationEntry // userID -> entry
	now     func() time.Time
	done    chan struct{}
}

func NewTokenRevocationStore() *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]revocationEntry),
		users:   make(map[string]revocationEntry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Revoke adds a token's JTI to the revocation list until the token would have
// expired on its own.
func (s *TokenRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = revocationEntry{At: s.now(), ExpiresAt: expiresAt}
	return nil
}

func (s *TokenRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[jti]
	return ok && s.now().Before(e.ExpiresAt), nil
}

// RevokeUser rejects every token of userID issued at or before at. The entry
// only needs to outlive the longest token lifetime, ttl.
func (s *TokenRevocationStore) RevokeUser(_ context.Context, userID string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = revocationEntry{At: at, ExpiresAt: at.Add(ttl)}
	return nil
}

func (s *TokenRevocationStore) UserRevokedAt(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[userID]
	if !ok || !s.now().Before(e.ExpiresAt) {
		return time.Time{}, false, nil
	}
	return e.At, true, nil
}

// Count returns the number of tracked token revocations.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *TokenRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *TokenRevocationStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, e := range s.entries {
		if !now.Before(e.ExpiresAt) {
			delete(s.entries, jti)
		}
	}
	for id, e := range s.users {
		if !now.Before(e.ExpiresAt) {
			delete(s.users, id)
		}
	}
}

package claimtoken

import (
	"context"
	"sync"
	"time"

	"certledger/pkg/platform/sentinel"
)

// MemoryStore is the in-process Store used by tests and dev configurations.
type MemoryStore struct {
	mu     sync.Mutex
	grants map[string]Grant
	clock  func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock injects the timestamp source for testability.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		grants: make(map[string]Grant),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Issue(ctx context.Context, grant Grant, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	grant.IssuedAt = now
	grant.ExpiresAt = now.Add(ttl)

	token := newToken()
	s.grants[token] = grant
	return token, nil
}

func (s *MemoryStore) Claim(ctx context.Context, token string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[token]
	if !ok {
		return Grant{}, sentinel.ErrNotFound
	}
	delete(s.grants, token)

	if s.clock().After(grant.ExpiresAt) {
		return Grant{}, sentinel.ErrExpired
	}
	return grant, nil
}

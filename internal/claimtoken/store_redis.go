package claimtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/pkg/platform/sentinel"
)

const claimTokenKeyPrefix = "claim:token:"

// RedisStore is the Redis-backed Store for distributed deployments where
// multiple instances must agree on single-use consumption. GETDEL makes the
// consume atomic without a lock.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock injects the timestamp source for testability.
func WithRedisClock(clock func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Issue(ctx context.Context, grant Grant, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.clock()
	grant.IssuedAt = now
	grant.ExpiresAt = now.Add(ttl)

	payload, err := json.Marshal(grant)
	if err != nil {
		return "", fmt.Errorf("marshal claim grant: %w", err)
	}

	token := newToken()
	if err := s.client.Set(ctx, claimTokenKeyPrefix+token, payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("store claim token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Claim(ctx context.Context, token string) (Grant, error) {
	payload, err := s.client.GetDel(ctx, claimTokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired keys vanish server-side, so unknown, consumed and
		// expired all land here.
		return Grant{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Grant{}, fmt.Errorf("consume claim token: %w", err)
	}

	var grant Grant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return Grant{}, fmt.Errorf("unmarshal claim grant: %w", err)
	}
	if s.clock().After(grant.ExpiresAt) {
		return Grant{}, sentinel.ErrExpired
	}
	return grant, nil
}

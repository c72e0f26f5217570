package claimtoken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/pkg/platform/sentinel"
)

func TestIssueAndClaimRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, Grant{TokenID: 7, RecipientID: "ada"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := store.Claim(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, grant.TokenID)
	assert.Equal(t, "ada", grant.RecipientID)
	assert.Equal(t, grant.IssuedAt.Add(time.Hour), grant.ExpiresAt)
}

func TestClaimIsSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, Grant{TokenID: 7, RecipientID: "ada"}, time.Hour)
	require.NoError(t, err)

	_, err = store.Claim(ctx, token)
	require.NoError(t, err)

	_, err = store.Claim(ctx, token)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestClaimUnknownToken(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Claim(context.Background(), "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestClaimExpiredToken(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	token, err := store.Issue(ctx, Grant{TokenID: 7, RecipientID: "ada"}, time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Claim(ctx, token)
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	// The failed claim still consumed the token.
	_, err = store.Claim(ctx, token)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestIssueDefaultsTTL(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))

	token, err := store.Issue(context.Background(), Grant{TokenID: 7}, 0)
	require.NoError(t, err)

	grant, err := store.Claim(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTTL), grant.ExpiresAt)
}

func TestTokensAreUnique(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := store.Issue(ctx, Grant{TokenID: 1}, time.Hour)
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestConcurrentClaimHasExactlyOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Issue(ctx, Grant{TokenID: 7, RecipientID: "ada"}, time.Hour)
	require.NoError(t, err)

	const claimers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Claim(ctx, token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

//go:build integration

package claimtoken_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certledger/internal/claimtoken"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *claimtoken.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = claimtoken.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestIssueAndClaimRoundTrip() {
	ctx := context.Background()

	token, err := s.store.Issue(ctx, claimtoken.Grant{TokenID: 7, RecipientID: "ada"}, time.Hour)
	s.Require().NoError(err)

	grant, err := s.store.Claim(ctx, token)
	s.Require().NoError(err)
	s.EqualValues(7, grant.TokenID)
	s.Equal("ada", grant.RecipientID)
}

func (s *RedisStoreSuite) TestClaimIsSingleUse() {
	ctx := context.Background()

	token, err := s.store.Issue(ctx, claimtoken.Grant{TokenID: 7}, time.Hour)
	s.Require().NoError(err)

	_, err = s.store.Claim(ctx, token)
	s.Require().NoError(err)

	_, err = s.store.Claim(ctx, token)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestServerSideExpiry() {
	ctx := context.Background()

	token, err := s.store.Issue(ctx, claimtoken.Grant{TokenID: 7}, time.Second)
	s.Require().NoError(err)

	time.Sleep(1500 * time.Millisecond)

	_, err = s.store.Claim(ctx, token)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConcurrentClaimHasExactlyOneWinner() {
	ctx := context.Background()

	token, err := s.store.Issue(ctx, claimtoken.Grant{TokenID: 7}, time.Hour)
	s.Require().NoError(err)

	const claimers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Claim(ctx, token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"notary/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) TestWindowIsSharedAndBounded() {
	ctx := context.Background()
	now := time.Now()
	s.store.now = func() time.Time { return now }

	for i := range 2 {
		res, err := s.store.Allow(ctx, "audit:acme:10.0.0.1", 2, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(1-i, res.Remaining)
		now = now.Add(time.Millisecond)
	}

	other := NewRedis(s.redis.Client)
	other.now = func() time.Time { return now }
	res, err := other.Allow(ctx, "audit:acme:10.0.0.1", 2, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed, "a second replica sees the same window")

	now = now.Add(time.Minute)
	res, err = s.store.Allow(ctx, "audit:acme:10.0.0.1", 2, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

//go:build integration

package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attestor/pkg/platform/sentinel"
	"attestor/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client, time.Minute)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, sampleArtifact("r1")))

	got, err := s.store.Find(ctx, "r1")
	s.Require().NoError(err)
	s.Equal("urn:uuid:r1", got.Credential.ID)
	s.True(got.CreatedAt.Equal(sampleArtifact("r1").CreatedAt))

	ttl, err := s.redis.Client.TTL(ctx, keyPrefix+"r1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisStoreSuite) TestNotFound() {
	_, err := s.store.Find(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

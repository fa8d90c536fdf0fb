package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attestor/pkg/platform/sentinel"
)

const keyPrefix = "attestor:artifact:"

// RedisStore keeps artifacts as JSON strings under a namespaced key with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, a Artifact) error {
	if a.ID == "" {
		return errors.New("artifact id is required")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+a.ID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save artifact: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, id string) (Artifact, error) {
	b, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Artifact{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("find artifact: %w: %w", sentinel.ErrUnavailable, err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	return a, nil
}

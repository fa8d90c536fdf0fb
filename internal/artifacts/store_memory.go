package artifacts

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"attestor/pkg/platform/sentinel"
)

// MemoryStore is a size-bounded LRU whose entries expire after ttl.
type MemoryStore struct {
	cache *expirable.LRU[string, Artifact]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryStore{cache: expirable.NewLRU[string, Artifact](size, nil, ttl)}
}

func (s *MemoryStore) Save(_ context.Context, a Artifact) error {
	if a.ID == "" {
		return errors.New("artifact id is required")
	}
	s.cache.Add(a.ID, a)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (Artifact, error) {
	a, ok := s.cache.Get(id)
	if !ok {
		return Artifact{}, sentinel.ErrNotFound
	}
	return a, nil
}

// Len reports live entries.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

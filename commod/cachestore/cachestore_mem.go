package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/haven-social/haven/commod/oracle"
)

type MemScoreCache struct {
	Data *expirable.LRU[string, oracle.ContentScore]
}

var _ ScoreCache = (*MemScoreCache)(nil)

func NewMemScoreCache(capacity int, ttl time.Duration) *MemScoreCache {
	return &MemScoreCache{
		Data: expirable.NewLRU[string, oracle.ContentScore](capacity, nil, ttl),
	}
}

func (s *MemScoreCache) Get(ctx context.Context, contentID string) (*oracle.ContentScore, error) {
	v, ok := s.Data.Get(contentID)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *MemScoreCache) Set(ctx context.Context, contentID string, score *oracle.ContentScore) error {
	s.Data.Add(contentID, *score)
	return nil
}

func (s *MemScoreCache) Purge(ctx context.Context, contentID string) error {
	s.Data.Remove(contentID)
	return nil
}

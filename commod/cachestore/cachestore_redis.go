package cachestore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/haven-social/haven/commod/oracle"
)

type RedisScoreCache struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ ScoreCache = (*RedisScoreCache)(nil)

func NewRedisScoreCache(redisURL string, ttl time.Duration) (*RedisScoreCache, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	})
	return &RedisScoreCache{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisScoreKey(contentID string) string {
	return "score/" + contentID
}

func (s *RedisScoreCache) Get(ctx context.Context, contentID string) (*oracle.ContentScore, error) {
	var val oracle.ContentScore
	err := s.Data.Get(ctx, redisScoreKey(contentID), &val)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &val, nil
}

func (s *RedisScoreCache) Set(ctx context.Context, contentID string, score *oracle.ContentScore) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisScoreKey(contentID),
		Value: *score,
		TTL:   s.TTL,
	})
}

func (s *RedisScoreCache) Purge(ctx context.Context, contentID string) error {
	err := s.Data.Delete(ctx, redisScoreKey(contentID))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}

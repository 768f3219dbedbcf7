package countstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisCommunityPrefix = "community/"
	redisCommunitySet    = "communities"
)

// Redis-backed implementation. Each community's counters live in one hash,
// with a set for distinct active authors; all writes use atomic hash
// increments so there is no read-modify-write anywhere.
type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisCountStore{Client: rdb}, nil
}

func communityKey(id string) string {
	return redisCommunityPrefix + id
}

func activeSetKey(id string) string {
	return redisCommunityPrefix + id + "/active"
}

func seenKey(id, messageID string) string {
	return redisCommunityPrefix + id + "/seen/" + messageID
}

func (s *RedisCountStore) RecordMessage(ctx context.Context, communityID, authorID, messageID string, sentiment *float64) error {
	if messageID != "" {
		// dedupe marker for at-least-once redelivery; expiry bounds the
		// key space to the plausible retry window
		fresh, err := s.Client.SetNX(ctx, seenKey(communityID, messageID), 1, 48*time.Hour).Result()
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
	}
	key := communityKey(communityID)

	// update several counters in a single redis round-trip
	multi := s.Client.Pipeline()
	multi.SAdd(ctx, redisCommunitySet, communityID)
	multi.HIncrBy(ctx, key, "message_count", 1)
	if authorID != "" {
		multi.SAdd(ctx, activeSetKey(communityID), authorID)
	}
	if sentiment != nil {
		multi.HIncrByFloat(ctx, key, "sentiment_sum", *sentiment)
		multi.HIncrBy(ctx, key, "sentiment_n", 1)
	}
	multi.HSet(ctx, key, "updated_at", time.Now().UTC().Format(time.RFC3339))
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) SetMemberCount(ctx context.Context, communityID string, members int64) error {
	multi := s.Client.Pipeline()
	multi.SAdd(ctx, redisCommunitySet, communityID)
	multi.HSet(ctx, communityKey(communityID), "member_count", members)
	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) SetEngagementRate(ctx context.Context, communityID string, rate float64) error {
	return s.Client.HSet(ctx, communityKey(communityID), "engagement_rate", rate).Err()
}

func (s *RedisCountStore) SetHealthScore(ctx context.Context, communityID string, score int) error {
	return s.Client.HSet(ctx, communityKey(communityID), "health_score", score).Err()
}

func (s *RedisCountStore) Get(ctx context.Context, communityID string) (*CommunitySnapshot, error) {
	multi := s.Client.Pipeline()
	hash := multi.HGetAll(ctx, communityKey(communityID))
	active := multi.SCard(ctx, activeSetKey(communityID))
	if _, err := multi.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	fields := hash.Val()
	snap := CommunitySnapshot{
		CommunityID:       communityID,
		MemberCount:       parseInt(fields["member_count"]),
		ActiveMemberCount: active.Val(),
		MessageCount:      parseInt(fields["message_count"]),
		EngagementRate:    parseFloat(fields["engagement_rate"]),
		HealthScore:       int(parseInt(fields["health_score"])),
	}
	if n := parseInt(fields["sentiment_n"]); n > 0 {
		snap.SentimentScore = parseFloat(fields["sentiment_sum"]) / float64(n)
	}
	if ts := fields["updated_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			snap.UpdatedAt = t
		}
	}
	return &snap, nil
}

func (s *RedisCountStore) ListCommunities(ctx context.Context) ([]string, error) {
	return s.Client.SMembers(ctx, redisCommunitySet).Result()
}

func parseInt(v string) int64 {
	if v == "" {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func parseFloat(v string) float64 {
	if v == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

package countstore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// In-process implementation. Each community gets its own entry with its own
// lock, so counter updates are serialized per community without a global
// lock across communities.
type MemCountStore struct {
	communities *xsync.MapOf[string, *memCommunity]
}

type memCommunity struct {
	lk            sync.Mutex
	memberCount   int64
	messageCount  int64
	activeAuthors map[string]bool
	seenMessages  map[string]bool
	sentimentSum  float64
	sentimentN    int64
	engagement    float64
	healthScore   int
	updatedAt     time.Time
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		communities: xsync.NewMapOf[string, *memCommunity](),
	}
}

func (s *MemCountStore) community(id string) *memCommunity {
	c, _ := s.communities.LoadOrCompute(id, func() *memCommunity {
		return &memCommunity{
			activeAuthors: make(map[string]bool),
			seenMessages:  make(map[string]bool),
		}
	})
	return c
}

func (s *MemCountStore) RecordMessage(ctx context.Context, communityID, authorID, messageID string, sentiment *float64) error {
	c := s.community(communityID)
	c.lk.Lock()
	defer c.lk.Unlock()
	if messageID != "" {
		if c.seenMessages[messageID] {
			return nil
		}
		c.seenMessages[messageID] = true
	}
	c.messageCount++
	if authorID != "" {
		c.activeAuthors[authorID] = true
	}
	if sentiment != nil {
		c.sentimentSum += *sentiment
		c.sentimentN++
	}
	c.updatedAt = time.Now()
	return nil
}

func (s *MemCountStore) SetMemberCount(ctx context.Context, communityID string, members int64) error {
	c := s.community(communityID)
	c.lk.Lock()
	defer c.lk.Unlock()
	c.memberCount = members
	c.updatedAt = time.Now()
	return nil
}

func (s *MemCountStore) SetEngagementRate(ctx context.Context, communityID string, rate float64) error {
	c := s.community(communityID)
	c.lk.Lock()
	defer c.lk.Unlock()
	c.engagement = rate
	c.updatedAt = time.Now()
	return nil
}

func (s *MemCountStore) SetHealthScore(ctx context.Context, communityID string, score int) error {
	c := s.community(communityID)
	c.lk.Lock()
	defer c.lk.Unlock()
	c.healthScore = score
	c.updatedAt = time.Now()
	return nil
}

func (s *MemCountStore) Get(ctx context.Context, communityID string) (*CommunitySnapshot, error) {
	c := s.community(communityID)
	c.lk.Lock()
	defer c.lk.Unlock()
	snap := CommunitySnapshot{
		CommunityID:       communityID,
		MemberCount:       c.memberCount,
		ActiveMemberCount: int64(len(c.activeAuthors)),
		MessageCount:      c.messageCount,
		EngagementRate:    c.engagement,
		HealthScore:       c.healthScore,
		UpdatedAt:         c.updatedAt,
	}
	if c.sentimentN > 0 {
		snap.SentimentScore = c.sentimentSum / float64(c.sentimentN)
	}
	return &snap, nil
}

func (s *MemCountStore) ListCommunities(ctx context.Context) ([]string, error) {
	var out []string
	s.communities.Range(func(id string, _ *memCommunity) bool {
		out = append(out, id)
		return true
	})
	return out, nil
}

package countstore

import (
	"context"
	"time"
)

// Consistent snapshot of one community's aggregate counters. Counters are
// incremented as a side effect of ingestion and read back by the health
// scorer; clients never set them directly.
type CommunitySnapshot struct {
	CommunityID       string
	MemberCount       int64
	ActiveMemberCount int64
	MessageCount      int64
	EngagementRate    float64
	// Rolling mean of observed message sentiment, in [-1,1].
	SentimentScore float64
	HealthScore    int
	UpdatedAt      time.Time
}

// Per-community aggregate counters. Counter updates within a single
// community must be serialized by the implementation so Get returns a
// consistent snapshot under concurrent ingestion.
type CountStore interface {
	// Records one ingested message: increments message_count, tracks the
	// author toward the distinct active-member count, and (when the oracle
	// scored the message) folds sentiment into the rolling mean. A message
	// ID already recorded is ignored, so at-least-once redelivery never
	// double-counts.
	RecordMessage(ctx context.Context, communityID, authorID, messageID string, sentiment *float64) error
	SetMemberCount(ctx context.Context, communityID string, members int64) error
	SetEngagementRate(ctx context.Context, communityID string, rate float64) error
	SetHealthScore(ctx context.Context, communityID string, score int) error
	Get(ctx context.Context, communityID string) (*CommunitySnapshot, error)
	// All communities with recorded counters, for periodic health recompute.
	ListCommunities(ctx context.Context) ([]string, error)
}

package cachestore

import (
	"context"

	"github.com/haven-social/haven/commod/oracle"
)

// Cache for oracle scores, keyed by content ID. Lets re-ingestion of the
// same content (at-least-once delivery) skip a second oracle call. A miss
// is (nil, nil), not an error.
type ScoreCache interface {
	Get(ctx context.Context, contentID string) (*oracle.ContentScore, error)
	Set(ctx context.Context, contentID string, score *oracle.ContentScore) error
	Purge(ctx context.Context, contentID string) error
}

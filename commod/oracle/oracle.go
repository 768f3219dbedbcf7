package oracle

import (
	"context"
)

// Scores returned by the external content analysis provider for a single
// piece of text. Sentiment is in [-1,1]; the other fields are in [0,1].
type ContentScore struct {
	Sentiment  float64 `json:"sentiment"`
	Toxicity   float64 `json:"toxicity"`
	Spam       float64 `json:"spam"`
	Confidence float64 `json:"confidence"`
}

// Oracle is the adapter boundary for external content analysis. One call
// returns all score dimensions, so callers are expected to score each piece
// of content at most once and reuse the result across rules.
type Oracle interface {
	ScoreText(ctx context.Context, text string) (*ContentScore, error)
}

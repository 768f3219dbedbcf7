package commod

import (
	"github.com/haven-social/haven/commod/rulestore"
)

// A single ingested piece of community content. Created by the ingestion
// collaborator; immutable and read-only inside the engine.
type ContentItem struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	CommunityID    string `json:"community_id"`
	AuthorID       string `json:"author_id"`
	Text           string `json:"text"`
	// "message", "post", "user", etc
	Type string `json:"type"`
}

// One rule match for one content item.
type Violation struct {
	RuleID   string
	RuleName string
	Reason   string
	// For score-based rules, the oracle score that satisfied the threshold;
	// 1.0 for keyword and regex matches.
	Confidence float64
	// True when the match came from an oracle score rather than direct text
	// matching. Only these contribute to a queue item's AIConfidence.
	ScoreBased bool
	Priority   int
	AutoAction rulestore.AutoAction
}

package rulestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var ErrInvalidRule = errors.New("invalid moderation rule")

type RuleType string

const (
	RuleTypeKeyword   RuleType = "keyword"
	RuleTypeRegex     RuleType = "regex"
	RuleTypeSentiment RuleType = "ai_sentiment"
	RuleTypeToxicity  RuleType = "ai_toxicity"
	RuleTypeSpam      RuleType = "spam_detection"
)

// Indicates whether the rule type's condition is a threshold against an
// oracle score (as opposed to direct text matching).
func (t RuleType) ScoreBased() bool {
	switch t {
	case RuleTypeSentiment, RuleTypeToxicity, RuleTypeSpam:
		return true
	}
	return false
}

type Comparator string

const (
	ComparatorGTE Comparator = "gte"
	ComparatorLTE Comparator = "lte"
)

type AutoAction string

const (
	AutoActionNone   AutoAction = "none"
	AutoActionDelete AutoAction = "delete"
	AutoActionHide   AutoAction = "hide"
	AutoActionWarn   AutoAction = "warn"
)

type KeywordConditions struct {
	// Terms matched case-insensitively as substrings of the content text.
	Keywords []string `json:"keywords"`
}

type RegexConditions struct {
	Pattern string `json:"pattern"`
}

type ScoreConditions struct {
	Threshold  float64    `json:"threshold"`
	Comparator Comparator `json:"comparator"`
}

// Tagged union of rule-type-specific conditions: exactly one variant is
// populated, and it must agree with the rule's type. Validated at rule
// creation, not at evaluation.
type Conditions struct {
	Keyword *KeywordConditions `json:"keyword,omitempty"`
	Regex   *RegexConditions   `json:"regex,omitempty"`
	Score   *ScoreConditions   `json:"score,omitempty"`
}

type Actions struct {
	AutoAction AutoAction `json:"auto_action,omitempty"`
}

type ModerationRule struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string `gorm:"index"`
	// Empty means the rule applies to all communities in the organization.
	CommunityID string     `gorm:"index"`
	Name        string     `gorm:"not null"`
	Type        RuleType   `gorm:"not null"`
	Conditions  Conditions `gorm:"serializer:json"`
	Actions     Actions    `gorm:"serializer:json"`
	// Severity 1 (lowest) through 5 (highest); determines default queue
	// priority for matched content.
	Severity  int `gorm:"not null"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *ModerationRule) Validate() error {
	if r.OrganizationID == "" {
		return fmt.Errorf("%w: missing organization", ErrInvalidRule)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if r.Severity < 1 || r.Severity > 5 {
		return fmt.Errorf("%w: severity out of range: %d", ErrInvalidRule, r.Severity)
	}
	switch r.Actions.AutoAction {
	case "", AutoActionNone, AutoActionDelete, AutoActionHide, AutoActionWarn:
	default:
		return fmt.Errorf("%w: unknown auto action: %s", ErrInvalidRule, r.Actions.AutoAction)
	}

	variants := 0
	if r.Conditions.Keyword != nil {
		variants++
	}
	if r.Conditions.Regex != nil {
		variants++
	}
	if r.Conditions.Score != nil {
		variants++
	}
	if variants != 1 {
		return fmt.Errorf("%w: expected exactly one conditions variant, found %d", ErrInvalidRule, variants)
	}

	switch r.Type {
	case RuleTypeKeyword:
		if r.Conditions.Keyword == nil || len(r.Conditions.Keyword.Keywords) == 0 {
			return fmt.Errorf("%w: keyword rule requires a keyword list", ErrInvalidRule)
		}
	case RuleTypeRegex:
		if r.Conditions.Regex == nil || r.Conditions.Regex.Pattern == "" {
			return fmt.Errorf("%w: regex rule requires a pattern", ErrInvalidRule)
		}
		if _, err := regexp.Compile(r.Conditions.Regex.Pattern); err != nil {
			return fmt.Errorf("%w: bad regex pattern: %v", ErrInvalidRule, err)
		}
	case RuleTypeSentiment, RuleTypeToxicity, RuleTypeSpam:
		sc := r.Conditions.Score
		if sc == nil {
			return fmt.Errorf("%w: %s rule requires score conditions", ErrInvalidRule, r.Type)
		}
		if sc.Comparator != ComparatorGTE && sc.Comparator != ComparatorLTE {
			return fmt.Errorf("%w: unknown comparator: %s", ErrInvalidRule, sc.Comparator)
		}
	default:
		return fmt.Errorf("%w: unknown rule type: %s", ErrInvalidRule, r.Type)
	}
	return nil
}

// Compiles the regex variant's pattern. Only meaningful for regex rules.
func (r *ModerationRule) CompilePattern() (*regexp.Regexp, error) {
	if r.Conditions.Regex == nil {
		return nil, fmt.Errorf("%w: not a regex rule", ErrInvalidRule)
	}
	return regexp.Compile(r.Conditions.Regex.Pattern)
}

// Trigger/action pairs executed outside the content-moderation path (new
// member joined, keyword digest, etc). Action params are keyed by handler
// name; unknown handlers are skipped at execution time.
type AutomationRule struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string `gorm:"index"`
	CommunityID    string
	Name           string
	TriggerType    string
	Actions        map[string]map[string]any `gorm:"serializer:json"`
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r *AutomationRule) Validate() error {
	if r.OrganizationID == "" {
		return fmt.Errorf("%w: missing organization", ErrInvalidRule)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: automation rule requires at least one action", ErrInvalidRule)
	}
	return nil
}

// Store for the active moderation and automation rule sets. Lookups by
// unknown ID return (nil, nil); the engine maps misses to its own NotFound.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *ModerationRule) error
	GetRule(ctx context.Context, id string) (*ModerationRule, error)
	// Returns rules for the organization which apply to the given community:
	// community-specific rules plus organization-wide ones. Empty communityID
	// returns all rules for the organization.
	ListRules(ctx context.Context, orgID, communityID string, activeOnly bool) ([]ModerationRule, error)
	UpdateRule(ctx context.Context, rule *ModerationRule) error

	CreateAutomationRule(ctx context.Context, rule *AutomationRule) error
	GetAutomationRule(ctx context.Context, id string) (*AutomationRule, error)
	ListAutomationRules(ctx context.Context, orgID string, activeOnly bool) ([]AutomationRule, error)
}

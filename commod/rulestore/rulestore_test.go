package rulestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKeywordRule() ModerationRule {
	return ModerationRule{
		OrganizationID: "org1",
		Name:           "kw",
		Type:           RuleTypeKeyword,
		Conditions:     Conditions{Keyword: &KeywordConditions{Keywords: []string{"bad"}}},
		Severity:       3,
		Active:         true,
	}
}

func TestModerationRuleValidate(t *testing.T) {
	assert := assert.New(t)

	rule := validKeywordRule()
	assert.NoError(rule.Validate())

	rule = validKeywordRule()
	rule.Severity = 6
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	rule = validKeywordRule()
	rule.Name = ""
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	// conditions variant must agree with the rule type
	rule = validKeywordRule()
	rule.Conditions = Conditions{Regex: &RegexConditions{Pattern: "x"}}
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	// exactly one variant
	rule = validKeywordRule()
	rule.Conditions.Regex = &RegexConditions{Pattern: "x"}
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	// malformed regex is rejected at creation, not evaluation
	rule = ModerationRule{
		OrganizationID: "org1",
		Name:           "re",
		Type:           RuleTypeRegex,
		Conditions:     Conditions{Regex: &RegexConditions{Pattern: `($[`}},
		Severity:       2,
	}
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	rule = ModerationRule{
		OrganizationID: "org1",
		Name:           "tox",
		Type:           RuleTypeToxicity,
		Conditions:     Conditions{Score: &ScoreConditions{Threshold: 0.8, Comparator: "between"}},
		Severity:       4,
	}
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))

	rule.Conditions.Score.Comparator = ComparatorGTE
	assert.NoError(rule.Validate())
}

func TestAutomationRuleValidate(t *testing.T) {
	assert := assert.New(t)

	rule := AutomationRule{
		OrganizationID: "org1",
		Name:           "auto",
		TriggerType:    "new_member",
		Actions:        map[string]map[string]any{"send_notification": {}},
	}
	assert.NoError(rule.Validate())

	rule.Actions = nil
	assert.True(errors.Is(rule.Validate(), ErrInvalidRule))
}

func TestMemRuleStoreScoping(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemRuleStore()

	orgWide := validKeywordRule()
	orgWide.Name = "org-wide"
	require.NoError(t, s.CreateRule(ctx, &orgWide))

	scoped := validKeywordRule()
	scoped.Name = "scoped"
	scoped.CommunityID = "general"
	require.NoError(t, s.CreateRule(ctx, &scoped))

	inactive := validKeywordRule()
	inactive.Name = "inactive"
	inactive.Active = false
	require.NoError(t, s.CreateRule(ctx, &inactive))

	otherOrg := validKeywordRule()
	otherOrg.OrganizationID = "org2"
	require.NoError(t, s.CreateRule(ctx, &otherOrg))

	// community query sees org-wide plus community-scoped active rules
	rules, err := s.ListRules(ctx, "org1", "general", true)
	require.NoError(t, err)
	assert.Len(rules, 2)

	// a different community does not see the scoped rule
	rules, err = s.ListRules(ctx, "org1", "offtopic", true)
	require.NoError(t, err)
	assert.Len(rules, 1)
	assert.Equal("org-wide", rules[0].Name)

	// management listing includes inactive rules
	rules, err = s.ListRules(ctx, "org1", "", false)
	require.NoError(t, err)
	assert.Len(rules, 3)

	got, err := s.GetRule(ctx, orgWide.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal("org-wide", got.Name)

	missing, err := s.GetRule(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(missing)
}

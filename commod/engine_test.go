package commod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-social/haven/commod/oracle"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

func TestEngineBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "no-spoilers",
		Type:           rulestore.RuleTypeKeyword,
		Conditions: rulestore.Conditions{
			Keyword: &rulestore.KeywordConditions{Keywords: []string{"spoiler"}},
		},
		Severity: 2,
		Active:   true,
	}))

	clean := ContentItem{
		ID:             "msg-1",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "alice",
		Text:           "just a normal message",
		Type:           "message",
	}
	items, err := eng.ProcessContent(ctx, clean)
	assert.NoError(err)
	assert.Empty(items)

	flagged := clean
	flagged.ID = "msg-2"
	flagged.Text = "huge SPOILER ahead"
	items, err = eng.ProcessContent(ctx, flagged)
	assert.NoError(err)
	require.Len(t, items, 1)
	assert.Equal(queuestore.StatusPending, items[0].Status)
	assert.Equal(2, items[0].Priority)
	assert.Nil(items[0].AIConfidence)
}

func TestEngineSpamScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := &oracle.MockOracle{
		Response: oracle.ContentScore{Sentiment: 0.0, Toxicity: 0.1, Spam: 0.8, Confidence: 0.9},
	}
	eng.Oracle = mock
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "spam-filter",
		Type:           rulestore.RuleTypeSpam,
		Conditions: rulestore.Conditions{
			Score: &rulestore.ScoreConditions{Threshold: 0.6, Comparator: rulestore.ComparatorGTE},
		},
		Severity: 4,
		Active:   true,
	}))

	item := ContentItem{
		ID:             "msg-spam",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "bob",
		Text:           "buy now limited offer",
		Type:           "message",
	}
	items, err := eng.ProcessContent(ctx, item)
	assert.NoError(err)
	require.Len(t, items, 1)
	assert.Equal(queuestore.StatusPending, items[0].Status)
	assert.Equal(4, items[0].Priority)
	require.NotNil(t, items[0].AIConfidence)
	assert.InDelta(0.8, *items[0].AIConfidence, 0.001)
	assert.Equal(int64(1), mock.Calls())
}

func TestEngineReingestionIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	mock := &oracle.MockOracle{
		Response: oracle.ContentScore{Spam: 0.9, Confidence: 0.9},
	}
	eng.Oracle = mock
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "spam-filter",
		Type:           rulestore.RuleTypeSpam,
		Conditions: rulestore.Conditions{
			Score: &rulestore.ScoreConditions{Threshold: 0.6, Comparator: rulestore.ComparatorGTE},
		},
		Severity: 3,
		Active:   true,
	}))

	item := ContentItem{
		ID:             "msg-dup",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "bob",
		Text:           "buy now",
		Type:           "message",
	}
	first, err := eng.ProcessContent(ctx, item)
	assert.NoError(err)
	require.Len(t, first, 1)

	// at-least-once delivery: the same item arrives again
	second, err := eng.ProcessContent(ctx, item)
	assert.NoError(err)
	require.Len(t, second, 1)
	assert.Equal(first[0].ID, second[0].ID)

	queued, err := eng.ListQueue(ctx, "org1", "", 0, 0)
	assert.NoError(err)
	assert.Len(queued, 1)
	assert.Len(queued[0].RuleIDs, 1)

	// score cache absorbs the second evaluation
	assert.Equal(int64(1), mock.Calls())

	// counters are keyed by message ID, so redelivery counts once
	snap, err := eng.Counters.Get(ctx, "general")
	assert.NoError(err)
	assert.Equal(int64(1), snap.MessageCount)
}

func TestEngineMaxSeverityWinsPriority(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	for _, r := range []rulestore.ModerationRule{
		{
			OrganizationID: "org1",
			Name:           "mild",
			Type:           rulestore.RuleTypeKeyword,
			Conditions:     rulestore.Conditions{Keyword: &rulestore.KeywordConditions{Keywords: []string{"badword"}}},
			Severity:       2,
			Active:         true,
		},
		{
			OrganizationID: "org1",
			Name:           "severe",
			Type:           rulestore.RuleTypeRegex,
			Conditions:     rulestore.Conditions{Regex: &rulestore.RegexConditions{Pattern: `badword{1,}`}},
			Severity:       5,
			Active:         true,
		},
	} {
		rule := r
		require.NoError(t, eng.Rules.CreateRule(ctx, &rule))
	}

	items, err := eng.ProcessContent(ctx, ContentItem{
		ID:             "msg-multi",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "carol",
		Text:           "this contains badword twice: badword",
		Type:           "message",
	})
	assert.NoError(err)
	require.Len(t, items, 1)
	assert.Equal(5, items[0].Priority)
	assert.Len(items[0].RuleIDs, 2)
	assert.Contains(items[0].Reason, "mild")
	assert.Contains(items[0].Reason, "severe")
}

func TestEngineDisposeTransitions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "kw",
		Type:           rulestore.RuleTypeKeyword,
		Conditions:     rulestore.Conditions{Keyword: &rulestore.KeywordConditions{Keywords: []string{"flagme"}}},
		Severity:       3,
		Active:         true,
	}))

	items, err := eng.ProcessContent(ctx, ContentItem{
		ID:             "msg-d1",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "dave",
		Text:           "flagme please",
		Type:           "message",
	})
	assert.NoError(err)
	require.Len(t, items, 1)
	itemID := items[0].ID

	act, err := eng.Dispose(ctx, itemID, DispositionEscalate, "mod-1", "not sure")
	assert.NoError(err)
	assert.Equal("escalate", act.ActionType)

	// escalated items can still be terminally disposed
	act, err = eng.Dispose(ctx, itemID, DispositionApprove, "mod-2", "fine actually")
	assert.NoError(err)
	assert.Equal("approve", act.ActionType)

	// terminal: any further disposition is rejected with no mutation
	_, err = eng.Dispose(ctx, itemID, DispositionReject, "mod-3", "")
	assert.True(errors.Is(err, ErrInvalidTransition))

	got, err := eng.GetQueueItem(ctx, itemID)
	assert.NoError(err)
	assert.Equal(queuestore.StatusApproved, got.Status)
	assert.Equal("mod-2", got.ModeratedBy)

	acts, err := eng.Queue.ListActions(ctx, itemID)
	assert.NoError(err)
	assert.Len(acts, 2)

	_, err = eng.Dispose(ctx, "no-such-item", DispositionApprove, "mod-1", "")
	assert.True(errors.Is(err, ErrNotFound))
}

func TestEngineSetRuleActive(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	rule := &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "toggle-me",
		Type:           rulestore.RuleTypeKeyword,
		Conditions:     rulestore.Conditions{Keyword: &rulestore.KeywordConditions{Keywords: []string{"flagme"}}},
		Severity:       3,
		Active:         true,
	}
	require.NoError(t, eng.Rules.CreateRule(ctx, rule))

	got, err := eng.SetRuleActive(ctx, rule.ID, false)
	assert.NoError(err)
	assert.False(got.Active)

	// deactivated rules no longer match
	items, err := eng.ProcessContent(ctx, ContentItem{
		ID:             "msg-toggled",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "frank",
		Text:           "flagme anyway",
		Type:           "message",
	})
	assert.NoError(err)
	assert.Empty(items)

	_, err = eng.SetRuleActive(ctx, "nope", true)
	assert.True(errors.Is(err, ErrNotFound))
}

func TestEngineAutoActionOnIngest(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "zero-tolerance",
		Type:           rulestore.RuleTypeKeyword,
		Conditions:     rulestore.Conditions{Keyword: &rulestore.KeywordConditions{Keywords: []string{"forbidden"}}},
		Actions:        rulestore.Actions{AutoAction: rulestore.AutoActionDelete},
		Severity:       5,
		Active:         true,
	}))

	items, err := eng.ProcessContent(ctx, ContentItem{
		ID:             "msg-auto",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "eve",
		Text:           "totally forbidden content",
		Type:           "message",
	})
	assert.NoError(err)
	require.Len(t, items, 1)
	assert.Equal(queuestore.StatusRejected, items[0].Status)
	assert.Equal("automod", items[0].ModeratedBy)

	// side effect applied plus disposition recorded
	acts, err := eng.Queue.ListActionsForTarget(ctx, "message", "msg-auto")
	assert.NoError(err)
	assert.NotEmpty(acts)
}

func TestEngineAutoActionRedelivery(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	require.NoError(t, eng.Rules.CreateRule(ctx, &rulestore.ModerationRule{
		OrganizationID: "org1",
		Name:           "zero-tolerance",
		Type:           rulestore.RuleTypeKeyword,
		Conditions:     rulestore.Conditions{Keyword: &rulestore.KeywordConditions{Keywords: []string{"forbidden"}}},
		Actions:        rulestore.Actions{AutoAction: rulestore.AutoActionDelete},
		Severity:       5,
		Active:         true,
	}))

	item := ContentItem{
		ID:             "msg-dup-auto",
		OrganizationID: "org1",
		CommunityID:    "general",
		AuthorID:       "eve",
		Text:           "totally forbidden content",
		Type:           "message",
	}
	first, err := eng.ProcessContent(ctx, item)
	assert.NoError(err)
	require.Len(t, first, 1)
	assert.Equal(queuestore.StatusRejected, first[0].Status)

	// at-least-once delivery: the auto-rejected item must absorb the
	// redelivery, not spawn a second queue item for the same rule
	second, err := eng.ProcessContent(ctx, item)
	assert.NoError(err)
	require.Len(t, second, 1)
	assert.Equal(first[0].ID, second[0].ID)
	assert.Equal(queuestore.StatusRejected, second[0].Status)

	queued, err := eng.ListQueue(ctx, "org1", "", 0, 0)
	assert.NoError(err)
	assert.Len(queued, 1)
}

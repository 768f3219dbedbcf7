package commod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-social/haven/commod/rulestore"
)

func TestAutomationRuleExecution(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	rule := &rulestore.AutomationRule{
		OrganizationID: "org1",
		CommunityID:    "general",
		Name:           "welcome-wagon",
		TriggerType:    "new_member",
		Actions: map[string]map[string]any{
			"send_notification": {"message": "welcome!"},
			"teleport_user":     {},
		},
		Active: true,
	}
	require.NoError(t, eng.Rules.CreateAutomationRule(ctx, rule))

	exec, err := eng.ExecuteAutomationRule(ctx, rule.ID, map[string]any{"member_id": "m1"})
	require.NoError(t, err)
	assert.True(exec.Success)
	assert.Equal("ok", exec.Results["send_notification"])
	// unknown action keys are skipped, not fatal
	assert.Equal("skipped", exec.Results["teleport_user"])
}

func TestAutomationHandlerFailureIsolated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	eng.AutomationHandlers["explode"] = func(ctx context.Context, eng *Engine, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) error {
		panic("boom")
	}
	rule := &rulestore.AutomationRule{
		OrganizationID: "org1",
		Name:           "mixed",
		TriggerType:    "keyword_match",
		Actions: map[string]map[string]any{
			"explode":           {},
			"send_notification": {"message": "hello"},
		},
		Active: true,
	}
	require.NoError(t, eng.Rules.CreateAutomationRule(ctx, rule))

	exec, err := eng.ExecuteAutomationRule(ctx, rule.ID, nil)
	require.NoError(t, err)
	assert.False(exec.Success)
	assert.Contains(exec.Results["explode"], "error:")
	// the panic did not abort the remaining actions
	assert.Equal("ok", exec.Results["send_notification"])
}

func TestAutomationFailuresArePersisted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()

	exec, err := eng.ExecuteAutomationRule(ctx, "no-such-rule", nil)
	assert.True(errors.Is(err, ErrNotFound))
	require.NotNil(t, exec)
	assert.False(exec.Success)
	assert.NotEmpty(exec.ErrorMessage)

	// inactive rules also fail, and also land in history
	rule := &rulestore.AutomationRule{
		OrganizationID: "org1",
		Name:           "dormant",
		TriggerType:    "new_member",
		Actions:        map[string]map[string]any{"send_notification": {}},
		Active:         false,
	}
	require.NoError(t, eng.Rules.CreateAutomationRule(ctx, rule))
	exec, err = eng.ExecuteAutomationRule(ctx, rule.ID, nil)
	assert.True(errors.Is(err, ErrRuleInactive))
	require.NotNil(t, exec)
	assert.False(exec.Success)

	execs, err := eng.ListAutomationExecutions(ctx, "", 10)
	assert.NoError(err)
	assert.Len(execs, 2)
}

func TestAutomationFlagContent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	rule := &rulestore.AutomationRule{
		OrganizationID: "org1",
		CommunityID:    "general",
		Name:           "flagger",
		TriggerType:    "keyword_match",
		Actions: map[string]map[string]any{
			"flag_content": {"priority": float64(4)},
		},
		Active: true,
	}
	require.NoError(t, eng.Rules.CreateAutomationRule(ctx, rule))

	exec, err := eng.ExecuteAutomationRule(ctx, rule.ID, map[string]any{
		"content_type": "message",
		"content_id":   "msg-flagged",
	})
	require.NoError(t, err)
	assert.True(exec.Success)

	queued, err := eng.ListQueue(ctx, "org1", "", 0, 0)
	assert.NoError(err)
	require.Len(t, queued, 1)
	assert.Equal("msg-flagged", queued[0].ContentID)
	assert.Equal(4, queued[0].Priority)

	// out-of-range priorities from rule config are clamped to the 1..5 scale
	clamped := &rulestore.AutomationRule{
		OrganizationID: "org1",
		CommunityID:    "general",
		Name:           "overzealous",
		TriggerType:    "keyword_match",
		Actions: map[string]map[string]any{
			"flag_content": {"priority": float64(99)},
		},
		Active: true,
	}
	require.NoError(t, eng.Rules.CreateAutomationRule(ctx, clamped))
	_, err = eng.ExecuteAutomationRule(ctx, clamped.ID, map[string]any{
		"content_type": "message",
		"content_id":   "msg-flagged-2",
	})
	require.NoError(t, err)

	queued, err = eng.ListQueue(ctx, "org1", "", 0, 0)
	assert.NoError(err)
	require.Len(t, queued, 2)
	for _, qi := range queued {
		if qi.ContentID == "msg-flagged-2" {
			assert.Equal(5, qi.Priority)
		}
	}
}

package commod

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/rulestore"
)

func TestExecuteAutoActionIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	store := contentstore.NewMemContentStore()
	eng.Content = store
	target := contentstore.Target{Type: "message", ID: "msg-99"}

	// first invocation mutates
	act1, err := eng.ExecuteAutoAction(ctx, rulestore.AutoActionDelete, target, "mod-1", "", "spam")
	require.NoError(t, err)
	assert.Equal("delete", act1.ActionType)
	assert.True(store.Applied("delete", target))

	// second invocation is a no-op mutation but still audited
	act2, err := eng.ExecuteAutoAction(ctx, rulestore.AutoActionDelete, target, "mod-2", "", "spam again")
	require.NoError(t, err)
	assert.NotEqual(act1.ID, act2.ID)

	acts, err := eng.Queue.ListActionsForTarget(ctx, "message", "msg-99")
	assert.NoError(err)
	assert.Len(acts, 2)
}

func TestExecuteAutoActionNone(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	target := contentstore.Target{Type: "post", ID: "post-1"}

	// "none" has no side effect but still writes an audit entry
	act, err := eng.ExecuteAutoAction(ctx, rulestore.AutoActionNone, target, "mod-1", "", "")
	require.NoError(t, err)
	assert.Equal("none", act.ActionType)

	acts, err := eng.Queue.ListActionsForTarget(ctx, "post", "post-1")
	assert.NoError(err)
	assert.Len(acts, 1)
}

func TestExecuteAutoActionUnknown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture()
	_, err := eng.ExecuteAutoAction(ctx, rulestore.AutoAction("obliterate"), contentstore.Target{Type: "message", ID: "x"}, "mod-1", "", "")
	assert.Error(err)
}

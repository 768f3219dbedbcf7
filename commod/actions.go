package commod

import (
	"context"
	"fmt"

	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

// Applies one auto action against the content store and appends an audit
// record, including for "none" (a no-op audit entry, for traceability).
//
// Execution is idempotent: the content store ignores repeat mutations for
// the same target, but every invocation still logs its own audit record.
func (eng *Engine) ExecuteAutoAction(ctx context.Context, action rulestore.AutoAction, target contentstore.Target, performedBy, queueItemID, reason string) (*queuestore.ModerationAction, error) {
	var applied bool
	var err error
	switch action {
	case rulestore.AutoActionDelete:
		applied, err = eng.Content.Delete(ctx, target)
	case rulestore.AutoActionHide:
		applied, err = eng.Content.Hide(ctx, target)
	case rulestore.AutoActionWarn:
		applied, err = eng.Content.Warn(ctx, target)
	case rulestore.AutoActionNone, "":
		// no side effect; still audited
	default:
		return nil, fmt.Errorf("unknown auto action: %s", action)
	}
	if err != nil {
		return nil, fmt.Errorf("executing %s on %s/%s: %w", action, target.Type, target.ID, err)
	}

	if !applied && action != rulestore.AutoActionNone && action != "" {
		eng.Logger.Debug("auto action already applied, no-op", "action", action, "targetType", target.Type, "targetID", target.ID)
	}

	act := &queuestore.ModerationAction{
		QueueItemID: queueItemID,
		ActionType:  string(action),
		TargetType:  target.Type,
		TargetID:    target.ID,
		PerformedBy: performedBy,
		Reason:      reason,
	}
	if act.ActionType == "" {
		act.ActionType = string(rulestore.AutoActionNone)
	}
	if err := eng.Queue.AppendAction(ctx, act); err != nil {
		return nil, fmt.Errorf("recording moderation action: %w", err)
	}
	autoActionCount.WithLabelValues(act.ActionType).Inc()
	return act, nil
}

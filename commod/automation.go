package commod

import (
	"context"
	"fmt"
	"sort"

	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

// Handles one action key of an automation rule. Params come from the rule's
// action config; trigger is the event payload that fired the rule.
type AutomationHandlerFunc = func(ctx context.Context, eng *Engine, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) error

const (
	automationResultOK      = "ok"
	automationResultSkipped = "skipped"
)

// Built-in automation action handlers. The daemon can extend this map
// before starting the engine.
func DefaultAutomationHandlers() map[string]AutomationHandlerFunc {
	return map[string]AutomationHandlerFunc{
		"send_notification": handleSendNotification,
		"flag_content":      handleFlagContent,
		"auto_moderate":     handleAutoModerate,
	}
}

// Runs one automation rule for a trigger event. Per-action failures and
// unknown action keys are recorded in the execution's result map without
// aborting the remaining actions. Every execution is persisted, including
// overall failures (rule missing or inactive), so the history is complete.
func (eng *Engine) ExecuteAutomationRule(ctx context.Context, ruleID string, trigger map[string]any) (*queuestore.AutomationExecution, error) {
	exec := &queuestore.AutomationExecution{
		RuleID:      ruleID,
		TriggerData: trigger,
		Results:     make(map[string]string),
	}

	rule, err := eng.Rules.GetAutomationRule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("loading automation rule: %w", err)
	}
	if rule == nil {
		return eng.failAutomation(ctx, exec, fmt.Errorf("%w: automation rule %s", ErrNotFound, ruleID))
	}
	exec.OrganizationID = rule.OrganizationID
	if !rule.Active {
		return eng.failAutomation(ctx, exec, fmt.Errorf("%w: automation rule %s", ErrRuleInactive, ruleID))
	}

	// deterministic action order
	keys := make([]string, 0, len(rule.Actions))
	for k := range rule.Actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exec.Success = true
	for _, key := range keys {
		handler, ok := eng.AutomationHandlers[key]
		if !ok {
			exec.Results[key] = automationResultSkipped
			continue
		}
		if err := eng.runAutomationHandler(ctx, handler, rule, rule.Actions[key], trigger); err != nil {
			exec.Results[key] = fmt.Sprintf("error: %v", err)
			exec.Success = false
			continue
		}
		exec.Results[key] = automationResultOK
	}

	if exec.Success {
		automationExecCount.WithLabelValues("success").Inc()
	} else {
		automationExecCount.WithLabelValues("failure").Inc()
	}
	if err := eng.Queue.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("persisting automation execution: %w", err)
	}
	return exec, nil
}

// Persists and returns a failed execution. The failure itself comes back as
// the error; the execution record always lands in history first.
func (eng *Engine) failAutomation(ctx context.Context, exec *queuestore.AutomationExecution, cause error) (*queuestore.AutomationExecution, error) {
	exec.Success = false
	exec.ErrorMessage = cause.Error()
	automationExecCount.WithLabelValues("failure").Inc()
	if err := eng.Queue.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("persisting failed automation execution: %w", err)
	}
	return exec, cause
}

func (eng *Engine) runAutomationHandler(ctx context.Context, handler AutomationHandlerFunc, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, eng, rule, params, trigger)
}

func handleSendNotification(ctx context.Context, eng *Engine, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) error {
	msg, _ := params["message"].(string)
	if msg == "" {
		msg = "automation rule triggered"
	}
	// notification fan-out is an external collaborator; the engine only logs
	eng.Logger.Info("automation notification", "ruleID", rule.ID, "ruleName", rule.Name, "message", msg)
	return nil
}

func handleFlagContent(ctx context.Context, eng *Engine, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) error {
	contentType, _ := trigger["content_type"].(string)
	contentID, _ := trigger["content_id"].(string)
	if contentID == "" {
		return fmt.Errorf("trigger data missing content_id")
	}
	priority := 3
	if p, ok := params["priority"].(float64); ok {
		// queue priorities run 1 (lowest) through 5
		priority = int(p)
		if priority < 1 {
			priority = 1
		} else if priority > 5 {
			priority = 5
		}
	}
	reason, _ := params["reason"].(string)
	if reason == "" {
		reason = fmt.Sprintf("flagged by automation rule %s", rule.Name)
	}
	_, _, err := eng.Queue.Create(ctx, &queuestore.QueueItem{
		OrganizationID: rule.OrganizationID,
		CommunityID:    rule.CommunityID,
		ContentType:    contentType,
		ContentID:      contentID,
		RuleIDs:        []string{rule.ID},
		Reason:         reason,
		Priority:       priority,
		Status:         queuestore.StatusPending,
		AutoAction:     rulestore.AutoActionNone,
	})
	return err
}

func handleAutoModerate(ctx context.Context, eng *Engine, rule *rulestore.AutomationRule, params map[string]any, trigger map[string]any) error {
	actionName, _ := params["action"].(string)
	contentType, _ := trigger["content_type"].(string)
	contentID, _ := trigger["content_id"].(string)
	if actionName == "" || contentID == "" {
		return fmt.Errorf("auto_moderate requires an action param and trigger content_id")
	}
	target := contentstore.Target{Type: contentType, ID: contentID}
	reason := fmt.Sprintf("automation rule %s", rule.Name)
	_, err := eng.ExecuteAutoAction(ctx, rulestore.AutoAction(actionName), target, "automation", "", reason)
	return err
}

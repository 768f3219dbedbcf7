package commod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haven-social/haven/commod/cachestore"
	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/countstore"
	"github.com/haven-social/haven/commod/oracle"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

// runtime for evaluating content against moderation rules, managing the
// review queue, and maintaining per-community counters.
//
// TODO: careful when initializing: several fields should not be null or zero, even though they are pointer type.
type Engine struct {
	Logger   *slog.Logger
	Rules    rulestore.RuleStore
	Queue    queuestore.QueueStore
	Counters countstore.CountStore
	Oracle   oracle.Oracle
	// memoizes oracle scores by content ID across re-ingestion (optional)
	Scores  cachestore.ScoreCache
	Content contentstore.ContentStore

	AutomationHandlers map[string]AutomationHandlerFunc
}

// Disposition a moderator (or the engine itself) applies to a queue item.
type Disposition string

const (
	DispositionApprove  Disposition = "approve"
	DispositionReject   Disposition = "reject"
	DispositionEscalate Disposition = "escalate"
)

// Evaluates one ingested content item against the organization's active
// rules and, on any match, creates or merges a moderation queue item.
// Returns the resulting queue items (empty when no rule matched).
//
// Community counters are updated as a side effect. Oracle and rule
// configuration failures are internal (logged, fail-open); only
// persistence errors surface to the caller, and the caller is expected to
// retry with the same item (enqueue is idempotent per rule).
func (eng *Engine) ProcessContent(ctx context.Context, item ContentItem) (out []queuestore.QueueItem, err error) {
	// similar to an HTTP server, we want to recover any panics from rule evaluation
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("commod content processing exception", "err", r, "contentID", item.ID, "communityID", item.CommunityID)
			err = fmt.Errorf("panic during content processing: %v", r)
		}
	}()
	start := time.Now()
	defer func() {
		contentProcessDuration.WithLabelValues(item.Type).Observe(time.Since(start).Seconds())
		if err != nil {
			contentErrorCount.WithLabelValues(item.Type).Inc()
		} else {
			contentProcessCount.WithLabelValues(item.Type).Inc()
		}
	}()

	logger := eng.Logger.With("contentID", item.ID, "communityID", item.CommunityID, "type", item.Type)

	rules, err := eng.Rules.ListRules(ctx, item.OrganizationID, item.CommunityID, true)
	if err != nil {
		return nil, fmt.Errorf("loading rule set: %w", err)
	}

	violations, scores := eng.evaluateContent(ctx, logger, item, rules)

	// counters update before any enqueue: the health scorer reads these
	// whether or not the content was flagged
	var sentiment *float64
	if scores != nil {
		sentiment = &scores.Sentiment
	}
	if err := eng.Counters.RecordMessage(ctx, item.CommunityID, item.AuthorID, item.ID, sentiment); err != nil {
		return nil, fmt.Errorf("recording community counters: %w", err)
	}

	if len(violations) == 0 {
		return nil, nil
	}
	logger.Info("content flagged", "violations", len(violations))

	qi := buildQueueItem(item, violations)
	created, wasNew, err := eng.Queue.Create(ctx, qi)
	if err != nil {
		return nil, fmt.Errorf("enqueueing flagged content: %w", err)
	}
	if !wasNew {
		logger.Debug("merged into existing queue item", "queueItemID", created.ID)
	}

	if created.Status == queuestore.StatusPending && created.AutoAction != rulestore.AutoActionNone && created.AutoAction != "" {
		updated, err := eng.applyAutoAction(ctx, logger, created)
		if err != nil {
			return nil, err
		}
		created = updated
	}

	return []queuestore.QueueItem{*created}, nil
}

// Collapses a set of violations into one queue item: max severity wins the
// priority, reasons concatenate, and the auto action comes from the most
// severe matched rule that configured one.
func buildQueueItem(item ContentItem, violations []Violation) *queuestore.QueueItem {
	qi := &queuestore.QueueItem{
		OrganizationID: item.OrganizationID,
		CommunityID:    item.CommunityID,
		ContentType:    item.Type,
		ContentID:      item.ID,
		Status:         queuestore.StatusPending,
		AutoAction:     rulestore.AutoActionNone,
	}
	reason := ""
	autoActionPriority := 0
	for _, v := range violations {
		qi.RuleIDs = append(qi.RuleIDs, v.RuleID)
		if v.Priority > qi.Priority {
			qi.Priority = v.Priority
		}
		if v.ScoreBased && (qi.AIConfidence == nil || v.Confidence > *qi.AIConfidence) {
			conf := v.Confidence
			qi.AIConfidence = &conf
		}
		if v.AutoAction != "" && v.AutoAction != rulestore.AutoActionNone && v.Priority > autoActionPriority {
			qi.AutoAction = v.AutoAction
			autoActionPriority = v.Priority
		}
		if reason != "" {
			reason += "; "
		}
		reason += v.Reason
	}
	qi.Reason = reason
	return qi
}

// Executes a pending queue item's auto action. Content removal (delete,
// hide) also auto-disposes the item as rejected; a warn leaves the item
// pending for human review.
func (eng *Engine) applyAutoAction(ctx context.Context, logger *slog.Logger, qi *queuestore.QueueItem) (*queuestore.QueueItem, error) {
	target := contentstore.Target{Type: qi.ContentType, ID: qi.ContentID}
	if _, err := eng.ExecuteAutoAction(ctx, qi.AutoAction, target, "automod", qi.ID, qi.Reason); err != nil {
		return nil, err
	}
	if qi.AutoAction == rulestore.AutoActionWarn {
		return qi, nil
	}

	act := &queuestore.ModerationAction{
		ActionType:  string(DispositionReject),
		TargetType:  qi.ContentType,
		TargetID:    qi.ContentID,
		PerformedBy: "automod",
		Reason:      qi.Reason,
	}
	updated, err := eng.Queue.Dispose(ctx, qi.ID, []queuestore.Status{queuestore.StatusPending}, queuestore.StatusRejected, "automod", act)
	if errors.Is(err, queuestore.ErrStatusConflict) {
		// a moderator got there first; the side effect already happened and
		// was logged, so nothing more to do
		logger.Info("auto-disposition lost race to moderator", "queueItemID", qi.ID)
		return qi, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auto-disposing queue item: %w", err)
	}
	dispositionCount.WithLabelValues(string(DispositionReject)).Inc()
	return updated, nil
}

// Applies a moderator disposition to a queue item. The status transition
// and audit record are atomic; losing a concurrent disposition race returns
// ErrInvalidTransition with no mutation.
func (eng *Engine) Dispose(ctx context.Context, itemID string, disposition Disposition, moderatorID, notes string) (*queuestore.ModerationAction, error) {
	var from []queuestore.Status
	var to queuestore.Status
	switch disposition {
	case DispositionApprove:
		from = []queuestore.Status{queuestore.StatusPending, queuestore.StatusEscalated}
		to = queuestore.StatusApproved
	case DispositionReject:
		from = []queuestore.Status{queuestore.StatusPending, queuestore.StatusEscalated}
		to = queuestore.StatusRejected
	case DispositionEscalate:
		from = []queuestore.Status{queuestore.StatusPending}
		to = queuestore.StatusEscalated
	default:
		return nil, fmt.Errorf("%w: unknown disposition: %s", ErrInvalidTransition, disposition)
	}

	act := &queuestore.ModerationAction{
		ActionType:  string(disposition),
		PerformedBy: moderatorID,
		Reason:      notes,
	}

	item, err := eng.Queue.Dispose(ctx, itemID, from, to, moderatorID, act)
	if errors.Is(err, queuestore.ErrNotFound) {
		return nil, fmt.Errorf("%w: queue item %s", ErrNotFound, itemID)
	}
	if errors.Is(err, queuestore.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: queue item %s can not move to %s", ErrInvalidTransition, itemID, to)
	}
	if err != nil {
		return nil, err
	}
	dispositionCount.WithLabelValues(string(disposition)).Inc()

	// a rejection carries out the item's configured auto action (idempotent
	// if automod already applied it on ingestion)
	if disposition == DispositionReject && item.AutoAction != rulestore.AutoActionNone && item.AutoAction != "" {
		target := contentstore.Target{Type: item.ContentType, ID: item.ContentID}
		if _, err := eng.ExecuteAutoAction(ctx, item.AutoAction, target, moderatorID, item.ID, notes); err != nil {
			eng.Logger.Error("auto action after rejection failed", "err", err, "queueItemID", item.ID)
		}
	}
	return act, nil
}

func (eng *Engine) ListQueue(ctx context.Context, orgID string, status queuestore.Status, limit, offset int) ([]queuestore.QueueItem, error) {
	return eng.Queue.List(ctx, queuestore.ListQuery{
		OrganizationID: orgID,
		Status:         status,
		Limit:          limit,
		Offset:         offset,
	})
}

func (eng *Engine) GetQueueItem(ctx context.Context, id string) (*queuestore.QueueItem, error) {
	item, err := eng.Queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: queue item %s", ErrNotFound, id)
	}
	return item, nil
}

// Returns the most recently persisted health score for the community.
func (eng *Engine) GetHealthScore(ctx context.Context, communityID string) (int, error) {
	snap, err := eng.Counters.Get(ctx, communityID)
	if err != nil {
		return 0, err
	}
	return snap.HealthScore, nil
}

// Recomputes the community health score from current counters, persists it,
// and returns the new value.
func (eng *Engine) RecomputeHealthScore(ctx context.Context, communityID string) (int, error) {
	snap, err := eng.Counters.Get(ctx, communityID)
	if err != nil {
		return 0, err
	}
	score := HealthScore(*snap)
	if err := eng.Counters.SetHealthScore(ctx, communityID, score); err != nil {
		return 0, err
	}
	eng.Logger.Debug("recomputed community health", "communityID", communityID, "score", score)
	return score, nil
}

// Recomputes health scores for every community with recorded counters.
func (eng *Engine) RecomputeAllHealthScores(ctx context.Context) error {
	communities, err := eng.Counters.ListCommunities(ctx)
	if err != nil {
		return err
	}
	for _, id := range communities {
		if _, err := eng.RecomputeHealthScore(ctx, id); err != nil {
			eng.Logger.Error("health recompute failed", "err", err, "communityID", id)
		}
	}
	return nil
}

func (eng *Engine) CreateRule(ctx context.Context, rule *rulestore.ModerationRule) error {
	return eng.Rules.CreateRule(ctx, rule)
}

func (eng *Engine) ListRules(ctx context.Context, orgID string) ([]rulestore.ModerationRule, error) {
	return eng.Rules.ListRules(ctx, orgID, "", false)
}

// Flips a rule's active flag; inactive rules are kept for audit and can be
// re-enabled, never deleted.
func (eng *Engine) SetRuleActive(ctx context.Context, ruleID string, active bool) (*rulestore.ModerationRule, error) {
	rule, err := eng.Rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, ruleID)
	}
	if rule.Active == active {
		return rule, nil
	}
	rule.Active = active
	if err := eng.Rules.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (eng *Engine) CreateAutomationRule(ctx context.Context, rule *rulestore.AutomationRule) error {
	return eng.Rules.CreateAutomationRule(ctx, rule)
}

func (eng *Engine) ListAutomationRules(ctx context.Context, orgID string) ([]rulestore.AutomationRule, error) {
	return eng.Rules.ListAutomationRules(ctx, orgID, false)
}

func (eng *Engine) ListAutomationExecutions(ctx context.Context, ruleID string, limit int) ([]queuestore.AutomationExecution, error) {
	return eng.Queue.ListExecutions(ctx, ruleID, limit)
}

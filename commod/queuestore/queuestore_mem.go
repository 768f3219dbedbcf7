package queuestore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haven-social/haven/commod/rulestore"
	"github.com/haven-social/haven/util"
)

type MemQueueStore struct {
	lk         sync.Mutex
	items      map[string]*QueueItem
	actions    []ModerationAction
	executions []AutomationExecution
}

var _ QueueStore = (*MemQueueStore)(nil)

func NewMemQueueStore() *MemQueueStore {
	return &MemQueueStore{
		items: make(map[string]*QueueItem),
	}
}

func (s *MemQueueStore) Create(ctx context.Context, item *QueueItem) (*QueueItem, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	// redelivery check spans all statuses: an already-disposed item covering
	// every incoming rule must not be reopened or duplicated
	var open *QueueItem
	for _, existing := range s.items {
		if existing.ContentType != item.ContentType || existing.ContentID != item.ContentID {
			continue
		}
		if existing.CoversRules(item.RuleIDs) {
			cp := *existing
			return &cp, false, nil
		}
		if !existing.Status.Terminal() {
			open = existing
		}
	}

	if open != nil {
		mergeInto(open, item)
		cp := *open
		return &cp, false, nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	key := openKey(item.ContentType, item.ContentID)
	item.OpenKey = &key
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	cp := *item
	s.items[item.ID] = &cp
	out := cp
	return &out, true, nil
}

// Folds a new flag into an existing open item: union of rule IDs, max of
// priorities and AI confidence, and the auto action of whichever flag came
// from the more severe rule.
func mergeInto(existing, item *QueueItem) bool {
	merged := false
	for _, rid := range item.RuleIDs {
		if !existing.HasRule(rid) {
			existing.RuleIDs = append(existing.RuleIDs, rid)
			merged = true
		}
	}
	if item.AutoAction != "" && item.AutoAction != rulestore.AutoActionNone && item.AutoAction != existing.AutoAction {
		if existing.AutoAction == "" || existing.AutoAction == rulestore.AutoActionNone || item.Priority > existing.Priority {
			existing.AutoAction = item.AutoAction
			merged = true
		}
	}
	if item.Priority > existing.Priority {
		existing.Priority = item.Priority
		merged = true
	}
	if item.AIConfidence != nil && (existing.AIConfidence == nil || *item.AIConfidence > *existing.AIConfidence) {
		existing.AIConfidence = item.AIConfidence
		merged = true
	}
	if merged {
		existing.Reason = mergeReasons(existing.Reason, item.Reason)
		existing.UpdatedAt = time.Now()
	}
	return merged
}

func mergeReasons(a, b string) string {
	parts := util.DedupeStrings(append(strings.Split(a, "; "), strings.Split(b, "; ")...))
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}

func (s *MemQueueStore) Get(ctx context.Context, id string) (*QueueItem, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *MemQueueStore) List(ctx context.Context, q ListQuery) ([]QueueItem, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	var out []QueueItem
	for _, item := range s.items {
		if q.OrganizationID != "" && item.OrganizationID != q.OrganizationID {
			continue
		}
		if q.CommunityID != "" && item.CommunityID != q.CommunityID {
			continue
		}
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		out = append(out, *item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		iOpen := out[i].Status == StatusPending
		jOpen := out[j].Status == StatusPending
		if iOpen != jOpen {
			return iOpen
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemQueueStore) Dispose(ctx context.Context, id string, from []Status, to Status, moderatedBy string, act *ModerationAction) (*QueueItem, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if item.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrStatusConflict
	}

	now := time.Now()
	item.Status = to
	item.ModeratedBy = moderatedBy
	item.ModeratedAt = &now
	item.UpdatedAt = now
	if to.Terminal() {
		item.OpenKey = nil
	}

	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.QueueItemID = item.ID
	act.CreatedAt = now
	s.actions = append(s.actions, *act)

	cp := *item
	return &cp, nil
}

func (s *MemQueueStore) AppendAction(ctx context.Context, act *ModerationAction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.CreatedAt = time.Now()
	s.actions = append(s.actions, *act)
	return nil
}

func (s *MemQueueStore) ListActions(ctx context.Context, queueItemID string) ([]ModerationAction, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	var out []ModerationAction
	for _, act := range s.actions {
		if act.QueueItemID == queueItemID {
			out = append(out, act)
		}
	}
	return out, nil
}

func (s *MemQueueStore) ListActionsForTarget(ctx context.Context, targetType, targetID string) ([]ModerationAction, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	var out []ModerationAction
	for _, act := range s.actions {
		if act.TargetType == targetType && act.TargetID == targetID {
			out = append(out, act)
		}
	}
	return out, nil
}

func (s *MemQueueStore) CreateExecution(ctx context.Context, exec *AutomationExecution) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	exec.CreatedAt = time.Now()
	s.executions = append(s.executions, *exec)
	return nil
}

func (s *MemQueueStore) ListExecutions(ctx context.Context, ruleID string, limit int) ([]AutomationExecution, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	var out []AutomationExecution
	for i := len(s.executions) - 1; i >= 0; i-- {
		if ruleID != "" && s.executions[i].RuleID != ruleID {
			continue
		}
		out = append(out, s.executions[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

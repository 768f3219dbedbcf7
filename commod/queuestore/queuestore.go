package queuestore

import (
	"context"
	"errors"
	"time"

	"github.com/haven-social/haven/commod/rulestore"
)

var (
	ErrNotFound = errors.New("queue item not found")
	// Returned when a compare-and-set disposition loses: the item was not in
	// any of the expected statuses.
	ErrStatusConflict = errors.New("queue item status conflict")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEscalated Status = "escalated"
)

// Terminal statuses can never be re-disposed; escalated items can.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// A piece of flagged content awaiting disposition. Items are never deleted;
// terminal items are retained for audit.
type QueueItem struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string `gorm:"index"`
	CommunityID    string `gorm:"index"`
	ContentType    string `gorm:"index:idx_queue_content"`
	ContentID      string `gorm:"index:idx_queue_content"`
	// IDs of the rules which flagged this content. Used for idempotent
	// re-ingestion: a rule already present here will not re-flag.
	RuleIDs []string `gorm:"serializer:json"`
	// Set while the item is open, cleared on terminal disposition. The
	// unique index makes concurrent creates for the same content collapse
	// into one open item.
	OpenKey *string `gorm:"uniqueIndex" json:"-"`
	Reason  string
	// Highest oracle score among AI-based matches; nil if only keyword or
	// regex rules matched.
	AIConfidence *float64
	Priority     int                 `gorm:"index"`
	Status       Status              `gorm:"index"`
	AutoAction   rulestore.AutoAction
	ModeratedBy  string
	ModeratedAt  *time.Time
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

func (qi *QueueItem) HasRule(ruleID string) bool {
	for _, id := range qi.RuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

// reports whether the item already records every rule in ruleIDs
func (qi *QueueItem) CoversRules(ruleIDs []string) bool {
	for _, rid := range ruleIDs {
		if !qi.HasRule(rid) {
			return false
		}
	}
	return true
}

func openKey(contentType, contentID string) string {
	return contentType + "/" + contentID
}

// Append-only audit record of a single moderation action (disposition or
// auto-action side effect).
type ModerationAction struct {
	ID          string `gorm:"primaryKey"`
	QueueItemID string `gorm:"index"`
	RuleID      string
	ActionType  string `gorm:"not null"`
	TargetType  string
	TargetID    string `gorm:"index"`
	PerformedBy string
	Reason      string
	CreatedAt   time.Time
}

// Append-only audit record of one automation rule execution, including
// failed ones.
type AutomationExecution struct {
	ID             string `gorm:"primaryKey"`
	RuleID         string `gorm:"index"`
	OrganizationID string
	TriggerData    map[string]any    `gorm:"serializer:json"`
	Results        map[string]string `gorm:"serializer:json"`
	Success        bool
	ErrorMessage   string
	CreatedAt      time.Time
}

type ListQuery struct {
	OrganizationID string
	CommunityID    string
	Status         Status
	Limit          int
	Offset         int
}

// Persistence for queue items and their audit trail.
//
// List ordering is a hard contract: open (pending) items first, then by
// priority descending, then oldest-first. This defines moderator workload
// ordering, not just presentation.
type QueueStore interface {
	// Idempotent create. If any existing item for the same (content_type,
	// content_id) already covers every incoming rule ID, it is returned
	// unchanged with created=false, whatever its status -- redelivery of
	// already-disposed content must not reopen it. Otherwise an open item
	// absorbs the new flags (union of rule IDs, max of priorities), and a
	// fresh item is created only when no open one exists.
	Create(ctx context.Context, item *QueueItem) (out *QueueItem, created bool, err error)
	Get(ctx context.Context, id string) (*QueueItem, error)
	List(ctx context.Context, q ListQuery) ([]QueueItem, error)
	// Compare-and-set status transition which appends the audit record in
	// the same transaction. Returns ErrNotFound for unknown IDs and
	// ErrStatusConflict if the item's status is not in `from`.
	Dispose(ctx context.Context, id string, from []Status, to Status, moderatedBy string, act *ModerationAction) (*QueueItem, error)

	AppendAction(ctx context.Context, act *ModerationAction) error
	ListActions(ctx context.Context, queueItemID string) ([]ModerationAction, error)
	ListActionsForTarget(ctx context.Context, targetType, targetID string) ([]ModerationAction, error)

	CreateExecution(ctx context.Context, exec *AutomationExecution) error
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]AutomationExecution, error)
}

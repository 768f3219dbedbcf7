package queuestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormQueueStore struct {
	DB *gorm.DB
}

var _ QueueStore = (*GormQueueStore)(nil)

func NewGormQueueStore(db *gorm.DB) (*GormQueueStore, error) {
	if err := db.AutoMigrate(&QueueItem{}, &ModerationAction{}, &AutomationExecution{}); err != nil {
		return nil, err
	}
	return &GormQueueStore{DB: db}, nil
}

func (s *GormQueueStore) Create(ctx context.Context, item *QueueItem) (*QueueItem, bool, error) {
	var out *QueueItem
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior []QueueItem
		if err := tx.Where("content_type = ? AND content_id = ?", item.ContentType, item.ContentID).
			Order("created_at DESC").Find(&prior).Error; err != nil {
			return err
		}

		// redelivery check spans all statuses: an already-disposed item
		// covering every incoming rule must not be reopened or duplicated
		var open *QueueItem
		for i := range prior {
			if prior[i].CoversRules(item.RuleIDs) {
				out = &prior[i]
				return nil
			}
			if !prior[i].Status.Terminal() && open == nil {
				open = &prior[i]
			}
		}
		if open != nil {
			if mergeInto(open, item) {
				if err := tx.Save(open).Error; err != nil {
					return err
				}
			}
			out = open
			return nil
		}

		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Status == "" {
			item.Status = StatusPending
		}
		key := openKey(item.ContentType, item.ContentID)
		item.OpenKey = &key

		// the unique index on open_key turns a concurrent create for the
		// same content into a conflict; the loser merges into the winner
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "open_key"}},
			DoNothing: true,
		}).Create(item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing QueueItem
			if err := tx.First(&existing, "open_key = ?", key).Error; err != nil {
				return err
			}
			if mergeInto(&existing, item) {
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
			out = &existing
			return nil
		}
		out = item
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (s *GormQueueStore) Get(ctx context.Context, id string) (*QueueItem, error) {
	var item QueueItem
	err := s.DB.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormQueueStore) List(ctx context.Context, q ListQuery) ([]QueueItem, error) {
	tx := s.DB.WithContext(ctx).Model(&QueueItem{})
	if q.OrganizationID != "" {
		tx = tx.Where("organization_id = ?", q.OrganizationID)
	}
	if q.CommunityID != "" {
		tx = tx.Where("community_id = ?", q.CommunityID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	tx = tx.Order("(status = 'pending') DESC").
		Order("priority DESC").
		Order("created_at ASC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	var items []QueueItem
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Status transition and audit append run in one transaction; the status
// check uses a guarded UPDATE so two concurrent dispositions can not both
// succeed.
func (s *GormQueueStore) Dispose(ctx context.Context, id string, from []Status, to Status, moderatedBy string, act *ModerationAction) (*QueueItem, error) {
	var out QueueItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]any{
			"status":       to,
			"moderated_by": moderatedBy,
			"moderated_at": now,
			"updated_at":   now,
		}
		if to.Terminal() {
			updates["open_key"] = nil
		}
		res := tx.Model(&QueueItem{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// distinguish missing item from a lost CAS
			var count int64
			if err := tx.Model(&QueueItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStatusConflict
		}

		if act.ID == "" {
			act.ID = uuid.NewString()
		}
		act.QueueItemID = id
		act.CreatedAt = now
		if err := tx.Create(act).Error; err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GormQueueStore) AppendAction(ctx context.Context, act *ModerationAction) error {
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Create(act).Error
}

func (s *GormQueueStore) ListActions(ctx context.Context, queueItemID string) ([]ModerationAction, error) {
	var out []ModerationAction
	err := s.DB.WithContext(ctx).
		Where("queue_item_id = ?", queueItemID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormQueueStore) ListActionsForTarget(ctx context.Context, targetType, targetID string) ([]ModerationAction, error) {
	var out []ModerationAction
	err := s.DB.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormQueueStore) CreateExecution(ctx context.Context, exec *AutomationExecution) error {
	if exec.ID == "" {
		exec.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Create(exec).Error
}

func (s *GormQueueStore) ListExecutions(ctx context.Context, ruleID string, limit int) ([]AutomationExecution, error) {
	tx := s.DB.WithContext(ctx).Model(&AutomationExecution{})
	if ruleID != "" {
		tx = tx.Where("rule_id = ?", ruleID)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var out []AutomationExecution
	err := tx.Order("created_at DESC").Find(&out).Error
	return out, err
}

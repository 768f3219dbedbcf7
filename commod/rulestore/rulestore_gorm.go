package rulestore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormRuleStore struct {
	DB *gorm.DB
}

var _ RuleStore = (*GormRuleStore)(nil)

func NewGormRuleStore(db *gorm.DB) (*GormRuleStore, error) {
	if err := db.AutoMigrate(&ModerationRule{}, &AutomationRule{}); err != nil {
		return nil, err
	}
	return &GormRuleStore{DB: db}, nil
}

func (s *GormRuleStore) CreateRule(ctx context.Context, rule *ModerationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Create(rule).Error
}

func (s *GormRuleStore) GetRule(ctx context.Context, id string) (*ModerationRule, error) {
	var rule ModerationRule
	err := s.DB.WithContext(ctx).First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *GormRuleStore) ListRules(ctx context.Context, orgID, communityID string, activeOnly bool) ([]ModerationRule, error) {
	q := s.DB.WithContext(ctx).Where("organization_id = ?", orgID)
	if communityID != "" {
		q = q.Where("community_id = ? OR community_id = ''", communityID)
	}
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rules []ModerationRule
	if err := q.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *GormRuleStore) UpdateRule(ctx context.Context, rule *ModerationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now()
	return s.DB.WithContext(ctx).Save(rule).Error
}

func (s *GormRuleStore) CreateAutomationRule(ctx context.Context, rule *AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Create(rule).Error
}

func (s *GormRuleStore) GetAutomationRule(ctx context.Context, id string) (*AutomationRule, error) {
	var rule AutomationRule
	err := s.DB.WithContext(ctx).First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *GormRuleStore) ListAutomationRules(ctx context.Context, orgID string, activeOnly bool) ([]AutomationRule, error) {
	q := s.DB.WithContext(ctx).Where("organization_id = ?", orgID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rules []AutomationRule
	if err := q.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

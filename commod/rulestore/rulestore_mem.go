package rulestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemRuleStore struct {
	lk         sync.RWMutex
	rules      map[string]*ModerationRule
	automation map[string]*AutomationRule
}

var _ RuleStore = (*MemRuleStore)(nil)

func NewMemRuleStore() *MemRuleStore {
	return &MemRuleStore{
		rules:      make(map[string]*ModerationRule),
		automation: make(map[string]*AutomationRule),
	}
}

func (s *MemRuleStore) CreateRule(ctx context.Context, rule *ModerationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemRuleStore) GetRule(ctx context.Context, id string) (*ModerationRule, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemRuleStore) ListRules(ctx context.Context, orgID, communityID string, activeOnly bool) ([]ModerationRule, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var out []ModerationRule
	for _, r := range s.rules {
		if r.OrganizationID != orgID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		if communityID != "" && r.CommunityID != "" && r.CommunityID != communityID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *MemRuleStore) UpdateRule(ctx context.Context, rule *ModerationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok {
		return fmt.Errorf("rule not found: %s", rule.ID)
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemRuleStore) CreateAutomationRule(ctx context.Context, rule *AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	cp := *rule
	s.automation[rule.ID] = &cp
	return nil
}

func (s *MemRuleStore) GetAutomationRule(ctx context.Context, id string) (*AutomationRule, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	r, ok := s.automation[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemRuleStore) ListAutomationRules(ctx context.Context, orgID string, activeOnly bool) ([]AutomationRule, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var out []AutomationRule
	for _, r := range s.automation {
		if r.OrganizationID != orgID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

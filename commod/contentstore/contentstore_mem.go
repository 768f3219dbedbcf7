package contentstore

import (
	"context"
	"sync"
)

type MemContentStore struct {
	lk      sync.Mutex
	applied map[string]map[Target]bool
}

var _ ContentStore = (*MemContentStore)(nil)

func NewMemContentStore() *MemContentStore {
	return &MemContentStore{
		applied: make(map[string]map[Target]bool),
	}
}

func (s *MemContentStore) apply(op string, target Target) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.applied[op]
	if !ok {
		m = make(map[Target]bool)
		s.applied[op] = m
	}
	if m[target] {
		return false, nil
	}
	m[target] = true
	return true, nil
}

func (s *MemContentStore) Delete(ctx context.Context, target Target) (bool, error) {
	return s.apply("delete", target)
}

func (s *MemContentStore) Hide(ctx context.Context, target Target) (bool, error) {
	return s.apply("hide", target)
}

func (s *MemContentStore) Warn(ctx context.Context, target Target) (bool, error) {
	return s.apply("warn", target)
}

// reports whether the op has been applied to the target
func (s *MemContentStore) Applied(op string, target Target) bool {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.applied[op][target]
}

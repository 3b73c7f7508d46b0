package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"clearance/internal/override"
	id "clearance/pkg/domain"
	"clearance/pkg/platform/sentinel"
)

// InMemory is an override store for tests and local development.
type InMemory struct {
	mu        sync.RWMutex
	overrides map[id.OverrideID]*override.Override
}

func NewInMemory() *InMemory {
	return &InMemory{overrides: make(map[id.OverrideID]*override.Override)}
}

func (s *InMemory) Insert(_ context.Context, o *override.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.overrides[o.ID]; exists {
		return sentinel.ErrConflict
	}
	s.overrides[o.ID] = o.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, overrideID id.OverrideID) (*override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[overrideID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *InMemory) ListActive(_ context.Context, employeeID id.EmployeeID, now time.Time) ([]*override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*override.Override
	for _, o := range s.overrides {
		if o.EmployeeID == employeeID && o.IsEffective(now) {
			out = append(out, o.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *override.Override) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Deactivate(_ context.Context, overrideID id.OverrideID, revokedAt time.Time, revokedBy id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[overrideID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !o.IsActive {
		return sentinel.ErrInvalidState
	}
	o.IsActive = false
	o.RevokedAt = &revokedAt
	o.RevokedBy = &revokedBy
	return nil
}

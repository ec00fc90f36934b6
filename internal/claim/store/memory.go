// Package store persists claims. Status changes are compare-and-swap: a write
// only lands if the stored status still matches what the caller read.
package store

import (
	"context"
	"sort"
	"sync"

	"insurely/internal/claim/models"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	lastID domain.ClaimID
	claims map[domain.ClaimID]*models.Claim
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{claims: make(map[domain.ClaimID]*models.Claim)}
}

func (s *InMemoryStore) NextID(_ context.Context) (domain.ClaimID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *InMemoryStore) Save(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrConflict
	}
	s.claims[claim.ID] = clone(claim)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) ListByPolicy(_ context.Context, policyID domain.PolicyID) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Claim
	for _, c := range s.claims {
		if c.PolicyID == policyID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateStatus replaces the stored claim if its status is still from.
func (s *InMemoryStore) UpdateStatus(_ context.Context, claim *models.Claim, from models.ClaimStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.claims[claim.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != from {
		return sentinel.ErrConflict
	}
	s.claims[claim.ID] = clone(claim)
	return nil
}

func clone(c *models.Claim) *models.Claim {
	out := *c
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		out.DecidedAt = &t
	}
	if c.PaidAt != nil {
		t := *c.PaidAt
		out.PaidAt = &t
	}
	return &out
}

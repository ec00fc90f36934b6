// Package store persists policies.
package store

import (
	"context"
	"sync"

	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
)

// InMemoryStore keeps policies in process memory. Returned policies are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	lastID   domain.PolicyID
	policies map[domain.PolicyID]*models.Policy
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{policies: make(map[domain.PolicyID]*models.Policy)}
}

func (s *InMemoryStore) NextID(_ context.Context) (domain.PolicyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

func (s *InMemoryStore) Save(_ context.Context, policy *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[policy.ID]; exists {
		return sentinel.ErrConflict
	}
	p := *policy
	s.policies[policy.ID] = &p
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *p
	return &c, nil
}

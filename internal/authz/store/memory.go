// Package store persists the insurer registry and its administrator.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"insurely/internal/authz/models"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	admin    domain.Principal
	insurers map[domain.Principal]*models.Grant
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{insurers: make(map[domain.Principal]*models.Grant)}
}

func (s *InMemoryStore) Administrator(_ context.Context) (domain.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin.IsNil() {
		return "", sentinel.ErrNotFound
	}
	return s.admin, nil
}

func (s *InMemoryStore) SetAdministratorIfAbsent(_ context.Context, admin domain.Principal, _ time.Time) (domain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin.IsNil() {
		s.admin = admin
	}
	return s.admin, nil
}

func (s *InMemoryStore) AddInsurer(_ context.Context, grant *models.Grant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.insurers[grant.Principal]; ok {
		return false, nil
	}
	g := *grant
	s.insurers[grant.Principal] = &g
	return true, nil
}

func (s *InMemoryStore) IsInsurer(_ context.Context, principal domain.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.insurers[principal]
	return ok, nil
}

func (s *InMemoryStore) ListInsurers(_ context.Context) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Grant, 0, len(s.insurers))
	for _, g := range s.insurers {
		c := *g
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

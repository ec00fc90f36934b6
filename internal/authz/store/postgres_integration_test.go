//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"insurely/internal/authz/models"
	"insurely/internal/authz/store"
	"insurely/internal/platform/postgres"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "insurers", "registry_admin"))
}

func (s *PostgresStoreSuite) TestAdministrator() {
	ctx := context.Background()

	_, err := s.store.Administrator(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)

	admin, err := s.store.SetAdministratorIfAbsent(ctx, "admin", time.Now())
	s.Require().NoError(err)
	s.Equal(domain.Principal("admin"), admin)

	admin, err = s.store.SetAdministratorIfAbsent(ctx, "other", time.Now())
	s.Require().NoError(err)
	s.Equal(domain.Principal("admin"), admin)
}

// TestConcurrentGrant verifies that concurrent grants of one principal add it once.
func (s *PostgresStoreSuite) TestConcurrentGrant() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var added atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.AddInsurer(ctx, &models.Grant{Principal: "bob", GrantedBy: "admin", GrantedAt: time.Now()})
			if err == nil && ok {
				added.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), added.Load())
	ok, err := s.store.IsInsurer(ctx, "bob")
	s.Require().NoError(err)
	s.True(ok)

	grants, err := s.store.ListInsurers(ctx)
	s.Require().NoError(err)
	s.Len(grants, 1)
}

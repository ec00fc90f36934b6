package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"insurely/internal/platform/postgres"
	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/platform/tx"
)

const (
	policyIDKind       = "policy"
	uniqueViolationErr = "23505"
)

// PostgresStore persists policies in the policies table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) NextID(ctx context.Context) (domain.PolicyID, error) {
	id, err := postgres.NextID(ctx, tx.Use(ctx, s.db), policyIDKind)
	if err != nil {
		return 0, err
	}
	return domain.PolicyID(id), nil
}

func (s *PostgresStore) Save(ctx context.Context, p *models.Policy) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO policies (id, policyholder, premium, coverage_amount, expiration, status, issued_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(p.ID), p.Policyholder.String(), p.Premium, p.CoverageAmount,
		p.Expiration, string(p.Status), p.IssuedBy.String(), p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErr {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PolicyID) (*models.Policy, error) {
	var (
		p                      models.Policy
		rawID                  int64
		holder, status, issuer string
	)
	err := tx.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, policyholder, premium, coverage_amount, expiration, status, issued_by, created_at
		FROM policies WHERE id = $1`, int64(id),
	).Scan(&rawID, &holder, &p.Premium, &p.CoverageAmount, &p.Expiration, &status, &issuer, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find policy: %w", err)
	}
	p.ID = domain.PolicyID(rawID)
	p.Policyholder = domain.Principal(holder)
	p.Status = models.PolicyStatus(status)
	p.IssuedBy = domain.Principal(issuer)
	return &p, nil
}

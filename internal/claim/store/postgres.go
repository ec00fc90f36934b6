package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"insurely/internal/claim/models"
	"insurely/internal/platform/postgres"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/platform/tx"
)

const claimIDKind = "claim"

const claimColumns = `id, policy_id, claimant, amount, reason, status, decided_by, decided_at,
	payout_attempts, last_payout_error, transfer_ref, paid_at, created_at, updated_at`

// PostgresStore persists claims in the claims table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) NextID(ctx context.Context) (domain.ClaimID, error) {
	id, err := postgres.NextID(ctx, tx.Use(ctx, s.db), claimIDKind)
	if err != nil {
		return 0, err
	}
	return domain.ClaimID(id), nil
}

func (s *PostgresStore) Save(ctx context.Context, c *models.Claim) error {
	_, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		int64(c.ID), int64(c.PolicyID), c.Claimant.String(), c.Amount, c.Reason, string(c.Status),
		c.DecidedBy.String(), c.DecidedAt, c.PayoutAttempts, c.LastPayoutError, c.TransferRef,
		c.PaidAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ClaimID) (*models.Claim, error) {
	row := tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, int64(id))
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByPolicy(ctx context.Context, policyID domain.PolicyID) ([]*models.Claim, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE policy_id = $1 ORDER BY id`, int64(policyID))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus writes the mutable claim fields only while the stored status is
// still from. Zero affected rows means the claim is gone or another writer won.
func (s *PostgresStore) UpdateStatus(ctx context.Context, c *models.Claim, from models.ClaimStatus) error {
	q := tx.Use(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE claims SET
			status = $3, decided_by = $4, decided_at = $5, payout_attempts = $6,
			last_payout_error = $7, transfer_ref = $8, paid_at = $9, updated_at = $10
		WHERE id = $1 AND status = $2`,
		int64(c.ID), string(from), string(c.Status), c.DecidedBy.String(), c.DecidedAt,
		c.PayoutAttempts, c.LastPayoutError, c.TransferRef, c.PaidAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, int64(c.ID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check claim: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c                           models.Claim
		id, policyID                int64
		claimant, status, decidedBy string
		decidedAt, paidAt           sql.NullTime
		createdAt, updatedAt        time.Time
	)
	if err := row.Scan(&id, &policyID, &claimant, &c.Amount, &c.Reason, &status, &decidedBy, &decidedAt,
		&c.PayoutAttempts, &c.LastPayoutError, &c.TransferRef, &paidAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.ID = domain.ClaimID(id)
	c.PolicyID = domain.PolicyID(policyID)
	c.Claimant = domain.Principal(claimant)
	c.Status = models.ClaimStatus(status)
	c.DecidedBy = domain.Principal(decidedBy)
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		c.PaidAt = &t
	}
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	return &c, nil
}

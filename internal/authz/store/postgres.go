package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"insurely/internal/authz/models"
	"insurely/pkg/domain"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/platform/tx"
)

// PostgresStore persists the registry in the insurers and registry_admin tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Administrator(ctx context.Context) (domain.Principal, error) {
	var admin string
	err := tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT principal FROM registry_admin WHERE singleton`,
	).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find administrator: %w", err)
	}
	return domain.Principal(admin), nil
}

func (s *PostgresStore) SetAdministratorIfAbsent(ctx context.Context, admin domain.Principal, now time.Time) (domain.Principal, error) {
	q := tx.Use(ctx, s.db)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO registry_admin (singleton, principal, updated_at)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (singleton) DO NOTHING`,
		admin.String(), now,
	); err != nil {
		return "", fmt.Errorf("set administrator: %w", err)
	}
	return s.Administrator(ctx)
}

func (s *PostgresStore) AddInsurer(ctx context.Context, grant *models.Grant) (bool, error) {
	res, err := tx.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO insurers (principal, granted_by, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal) DO NOTHING`,
		grant.Principal.String(), grant.GrantedBy.String(), grant.GrantedAt,
	)
	if err != nil {
		return false, fmt.Errorf("add insurer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add insurer rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) IsInsurer(ctx context.Context, principal domain.Principal) (bool, error) {
	var exists bool
	if err := tx.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM insurers WHERE principal = $1)`, principal.String(),
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check insurer: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListInsurers(ctx context.Context) ([]*models.Grant, error) {
	rows, err := tx.Use(ctx, s.db).QueryContext(ctx,
		`SELECT principal, granted_by, granted_at FROM insurers ORDER BY principal`)
	if err != nil {
		return nil, fmt.Errorf("list insurers: %w", err)
	}
	defer rows.Close()

	var out []*models.Grant
	for rows.Next() {
		var principal, grantedBy string
		g := &models.Grant{}
		if err := rows.Scan(&principal, &grantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan insurer: %w", err)
		}
		g.Principal = domain.Principal(principal)
		g.GrantedBy = domain.Principal(grantedBy)
		out = append(out, g)
	}
	return out, rows.Err()
}

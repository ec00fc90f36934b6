package postgres

import (
	"context"
	"fmt"

	"insurely/pkg/platform/tx"
)

// NextID atomically increments the counter for kind and returns the new value,
// starting at 1. Run it in the same transaction as the insert that consumes the
// id so a rolled back insert does not leave a gap.
func NextID(ctx context.Context, q tx.Querier, kind string) (int64, error) {
	var next int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO id_counters (kind, value) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET value = id_counters.value + 1
		RETURNING value`, kind,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return next, nil
}

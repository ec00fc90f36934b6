package treasury

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurely/internal/payout"
)

func TestSimulated(t *testing.T) {
	ctx := context.Background()

	t.Run("replaying a key returns the original receipt", func(t *testing.T) {
		sim := NewSimulated()
		first, err := sim.Transfer(ctx, transferReq())
		require.NoError(t, err)
		second, err := sim.Transfer(ctx, transferReq())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, sim.Transfers(), 1)
	})

	t.Run("injected failures do not settle", func(t *testing.T) {
		sim := NewSimulated()
		sim.FailNext(1)

		_, err := sim.Transfer(ctx, transferReq())
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
		assert.Empty(t, sim.Transfers())

		receipt, err := sim.Transfer(ctx, transferReq())
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.Reference)
	})

	t.Run("limited balance refuses overdrafts", func(t *testing.T) {
		sim := NewSimulatedWithBalance(decimal.NewFromInt(300))

		_, err := sim.Transfer(ctx, transferReq())
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("49.50").Equal(sim.Balance()))

		_, err = sim.Transfer(ctx, payout.TransferRequest{
			IdempotencyKey: "claim-8",
			To:             "bob",
			Amount:         decimal.NewFromInt(50),
		})
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
		assert.Len(t, sim.Transfers(), 1)
	})
}

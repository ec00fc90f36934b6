package treasury

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"insurely/internal/payout"
)

// Simulated is an in-process treasury for local runs and tests. Transfers are
// idempotent by key: replaying a settled key returns the original receipt
// without moving funds again.
type Simulated struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	unlimited bool
	settled   map[string]payout.TransferReceipt
	failNext  int
	transfers []payout.TransferRequest
}

// NewSimulated returns a treasury with unlimited funds.
func NewSimulated() *Simulated {
	return &Simulated{unlimited: true, settled: make(map[string]payout.TransferReceipt)}
}

// NewSimulatedWithBalance returns a treasury that refuses transfers exceeding
// its remaining balance.
func NewSimulatedWithBalance(balance decimal.Decimal) *Simulated {
	return &Simulated{balance: balance, settled: make(map[string]payout.TransferReceipt)}
}

// FailNext makes the next n transfers fail as unavailable.
func (s *Simulated) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Simulated) Transfer(_ context.Context, req payout.TransferRequest) (payout.TransferReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt, ok := s.settled[req.IdempotencyKey]; ok {
		return receipt, nil
	}
	if s.failNext > 0 {
		s.failNext--
		return payout.TransferReceipt{}, &TransferError{Category: ErrorUnavailable, Message: "simulated outage"}
	}
	if !req.Amount.IsPositive() {
		return payout.TransferReceipt{}, &TransferError{Category: ErrorRejected, Message: "amount must be positive"}
	}
	if !s.unlimited {
		if req.Amount.GreaterThan(s.balance) {
			return payout.TransferReceipt{}, &TransferError{Category: ErrorRejected, Message: "insufficient funds"}
		}
		s.balance = s.balance.Sub(req.Amount)
	}

	receipt := payout.TransferReceipt{Reference: "sim-" + uuid.NewString()}
	s.settled[req.IdempotencyKey] = receipt
	s.transfers = append(s.transfers, req)
	return receipt, nil
}

// Transfers returns the transfers that moved funds, in order.
func (s *Simulated) Transfers() []payout.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]payout.TransferRequest, len(s.transfers))
	copy(out, s.transfers)
	return out
}

// Balance returns the remaining funds; meaningless for unlimited treasuries.
func (s *Simulated) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

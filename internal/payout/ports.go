package payout

import (
	"context"

	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
)

// TransferRequest asks the treasury to move Amount to To. Requests sharing an
// IdempotencyKey describe the same logical transfer and must settle at most once.
type TransferRequest struct {
	IdempotencyKey string
	To             domain.Principal
	Amount         decimal.Decimal
}

// TransferReceipt confirms a settled transfer.
type TransferReceipt struct {
	Reference string
}

// Treasury holds the funds that pay claims. Any error means the transfer did
// not settle; a timeout surfaces as an error like any other failure.
type Treasury interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error)
}

package handler

import (
	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

// SubmitClaimRequest is the body of POST /policies/{policyID}/claims.
type SubmitClaimRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`

	parsedAmount decimal.Decimal
}

// Validate parses the amount. Its positivity and the reason length are
// checked by the service after the policy access checks.
func (r *SubmitClaimRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	amount, err := domain.ParseDecimal(r.Amount, "amount")
	if err != nil {
		return err
	}
	r.parsedAmount = amount
	return nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

// IssueRequest carries the terms of a new policy.
type IssueRequest struct {
	Policyholder   domain.Principal
	Premium        decimal.Decimal
	CoverageAmount decimal.Decimal
	Duration       time.Duration
}

func (r IssueRequest) Validate() error {
	if r.Policyholder.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "policyholder is required")
	}
	if !r.Premium.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "premium must be greater than zero")
	}
	if !r.CoverageAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "coverage amount must be greater than zero")
	}
	if err := domain.CheckAmountBounds(r.Premium, "premium"); err != nil {
		return err
	}
	return domain.CheckAmountBounds(r.CoverageAmount, "coverage amount")
}

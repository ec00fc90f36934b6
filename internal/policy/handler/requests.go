package handler

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

// maxDurationSeconds keeps the duration representable as a time.Duration.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// IssuePolicyRequest is the body of POST /policies. Amounts are decimal strings.
type IssuePolicyRequest struct {
	Policyholder    string `json:"policyholder"`
	Premium         string `json:"premium"`
	CoverageAmount  string `json:"coverage_amount"`
	DurationSeconds int64  `json:"duration_seconds"`

	parsed models.IssueRequest
}

// Validate parses the body. Positivity is left to the service so every
// business-rule failure carries the same code.
func (r *IssuePolicyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Policyholder = strings.TrimSpace(r.Policyholder)
	if r.Policyholder == "" {
		return dErrors.New(dErrors.CodeValidation, "policyholder is required")
	}
	holder, err := domain.ParsePrincipal(r.Policyholder)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "policyholder is invalid")
	}

	premium, err := domain.ParseDecimal(r.Premium, "premium")
	if err != nil {
		return err
	}
	coverage, err := domain.ParseDecimal(r.CoverageAmount, "coverage_amount")
	if err != nil {
		return err
	}

	if r.DurationSeconds > maxDurationSeconds || r.DurationSeconds < -maxDurationSeconds {
		return dErrors.New(dErrors.CodeValidation, "duration_seconds is out of range")
	}

	r.parsed = models.IssueRequest{
		Policyholder:   holder,
		Premium:        premium,
		CoverageAmount: coverage,
		Duration:       time.Duration(r.DurationSeconds) * time.Second,
	}
	return nil
}

// PayPremiumRequest is the body of POST /policies/{policyID}/premiums.
type PayPremiumRequest struct {
	Amount string `json:"amount"`

	parsed decimal.Decimal
}

func (r *PayPremiumRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	amount, err := domain.ParseDecimal(r.Amount, "amount")
	if err != nil {
		return err
	}
	r.parsed = amount
	return nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

type ClaimStatus string

const (
	ClaimStatusSubmitted       ClaimStatus = "submitted"
	ClaimStatusApproved        ClaimStatus = "approved"
	ClaimStatusRejected        ClaimStatus = "rejected"
	ClaimStatusPaymentInFlight ClaimStatus = "payment_in_flight"
	ClaimStatusPaymentFailed   ClaimStatus = "payment_failed"
	ClaimStatusPaidOut         ClaimStatus = "paid_out"
)

var transitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusSubmitted:       {ClaimStatusApproved, ClaimStatusRejected},
	ClaimStatusApproved:        {ClaimStatusPaymentInFlight},
	ClaimStatusPaymentFailed:   {ClaimStatusPaymentInFlight},
	ClaimStatusPaymentInFlight: {ClaimStatusPaidOut, ClaimStatusPaymentFailed},
}

func (s ClaimStatus) IsValid() bool {
	switch s {
	case ClaimStatusSubmitted, ClaimStatusApproved, ClaimStatusRejected,
		ClaimStatusPaymentInFlight, ClaimStatusPaymentFailed, ClaimStatusPaidOut:
		return true
	}
	return false
}

func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MaxReasonLength bounds the free-text justification.
const MaxReasonLength = 4096

// Claim is a policyholder's request for payout under a policy.
//
// Invariants:
//   - Amount is strictly positive; it is not bounded by the policy coverage
//   - Claimant is the policyholder at submission time
//   - Status follows submitted → approved|rejected, approved|payment_failed →
//     payment_in_flight → paid_out|payment_failed
//   - paid_out is reached at most once and is terminal
type Claim struct {
	ID              domain.ClaimID   `json:"claim_id"`
	PolicyID        domain.PolicyID  `json:"policy_id"`
	Claimant        domain.Principal `json:"claimant"`
	Amount          decimal.Decimal  `json:"amount"`
	Reason          string           `json:"reason"`
	Status          ClaimStatus      `json:"status"`
	DecidedBy       domain.Principal `json:"decided_by,omitempty"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
	PayoutAttempts  int              `json:"payout_attempts"`
	LastPayoutError string           `json:"last_payout_error,omitempty"`
	TransferRef     string           `json:"transfer_ref,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func NewClaim(id domain.ClaimID, policyID domain.PolicyID, claimant domain.Principal, amount decimal.Decimal, reason string, now time.Time) (*Claim, error) {
	if id <= 0 || policyID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim and policy ids must be positive")
	}
	if claimant.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claimant is required")
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claim amount must be greater than zero")
	}
	if err := domain.CheckAmountBounds(amount, "claim amount"); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "claim amount exceeds the stored precision")
	}
	if len(reason) > MaxReasonLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reason is too long")
	}
	return &Claim{
		ID:        id,
		PolicyID:  policyID,
		Claimant:  claimant,
		Amount:    amount,
		Reason:    reason,
		Status:    ClaimStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanDecide checks that the claim is still awaiting adjudication.
func (c *Claim) CanDecide() error {
	if c.Status != ClaimStatusSubmitted {
		return dErrors.New(dErrors.CodeInvalidState, "claim is "+string(c.Status)+", not submitted")
	}
	return nil
}

func (c *Claim) ApplyApproval(by domain.Principal, now time.Time) {
	c.applyDecision(ClaimStatusApproved, by, now)
}

func (c *Claim) ApplyRejection(by domain.Principal, now time.Time) {
	c.applyDecision(ClaimStatusRejected, by, now)
}

func (c *Claim) applyDecision(status ClaimStatus, by domain.Principal, now time.Time) {
	c.Status = status
	c.DecidedBy = by
	c.DecidedAt = &now
	c.UpdatedAt = now
}

// CanPay checks whether a payout attempt may start. Approved claims and claims
// whose previous transfer failed are payable.
func (c *Claim) CanPay() error {
	switch c.Status {
	case ClaimStatusApproved, ClaimStatusPaymentFailed:
		return nil
	case ClaimStatusPaidOut:
		return dErrors.New(dErrors.CodeAlreadyPaid, "claim has already been paid")
	case ClaimStatusPaymentInFlight:
		return dErrors.New(dErrors.CodeInvalidState, "a payout for this claim is already in flight")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "claim is "+string(c.Status)+", not approved")
	}
}

func (c *Claim) ApplyPayoutStarted(now time.Time) {
	c.Status = ClaimStatusPaymentInFlight
	c.PayoutAttempts++
	c.UpdatedAt = now
}

func (c *Claim) ApplyPayoutSucceeded(transferRef string, now time.Time) {
	c.Status = ClaimStatusPaidOut
	c.TransferRef = transferRef
	c.LastPayoutError = ""
	c.PaidAt = &now
	c.UpdatedAt = now
}

func (c *Claim) ApplyPayoutFailed(reason string, now time.Time) {
	c.Status = ClaimStatusPaymentFailed
	c.LastPayoutError = reason
	c.UpdatedAt = now
}

// IdempotencyKey identifies the single logical transfer for this claim. Every
// attempt reuses it so the treasury can collapse retries.
func (c *Claim) IdempotencyKey() string {
	return "claim-" + c.ID.String()
}

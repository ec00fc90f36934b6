package models

import (
	"time"

	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

type PolicyStatus string

const (
	PolicyStatusActive PolicyStatus = "active"
	// PolicyStatusInactive is part of the persisted vocabulary but no
	// operation currently transitions a policy into it.
	PolicyStatusInactive PolicyStatus = "inactive"
)

func (s PolicyStatus) IsValid() bool {
	return s == PolicyStatusActive || s == PolicyStatusInactive
}

// Policy is a coverage agreement between an insurer and a policyholder.
//
// Invariants:
//   - ID, Policyholder, CoverageAmount and Expiration are immutable once issued
//   - Premium and CoverageAmount are strictly positive
//   - Status starts active
type Policy struct {
	ID             domain.PolicyID  `json:"policy_id"`
	Policyholder   domain.Principal `json:"policyholder"`
	Premium        decimal.Decimal  `json:"premium"`
	CoverageAmount decimal.Decimal  `json:"coverage_amount"`
	Expiration     time.Time        `json:"expiration"`
	Status         PolicyStatus     `json:"status"`
	IssuedBy       domain.Principal `json:"issued_by"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewPolicy builds an active policy expiring at issuedAt + duration. A zero or
// negative duration yields a policy that is already expired.
func NewPolicy(id domain.PolicyID, req IssueRequest, issuedBy domain.Principal, issuedAt time.Time) (*Policy, error) {
	if id <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy id must be positive")
	}
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid policy")
	}
	return &Policy{
		ID:             id,
		Policyholder:   req.Policyholder,
		Premium:        req.Premium,
		CoverageAmount: req.CoverageAmount,
		Expiration:     issuedAt.Add(req.Duration),
		Status:         PolicyStatusActive,
		IssuedBy:       issuedBy,
		CreatedAt:      issuedAt,
	}, nil
}

func (p *Policy) IsActive() bool {
	return p.Status == PolicyStatusActive
}

// IsExpiredAt reports whether now is past the expiration. The expiration
// instant itself is still covered.
func (p *Policy) IsExpiredAt(now time.Time) bool {
	return now.After(p.Expiration)
}

// CheckHolderAccess validates that caller may act on the policy as its holder
// at now. Checks run in a fixed order: ownership, status, expiry.
func (p *Policy) CheckHolderAccess(caller domain.Principal, now time.Time) error {
	if caller != p.Policyholder {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the policyholder")
	}
	if !p.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "policy is not active")
	}
	if p.IsExpiredAt(now) {
		return dErrors.New(dErrors.CodeExpired, "policy has expired")
	}
	return nil
}

// CheckPremium validates a premium payment. The amount must equal the premium
// exactly; numeric equality ignores scale, so 100 matches 100.00.
func (p *Policy) CheckPremium(caller domain.Principal, amount decimal.Decimal, now time.Time) error {
	if err := p.CheckHolderAccess(caller, now); err != nil {
		return err
	}
	if !amount.Equal(p.Premium) {
		return dErrors.New(dErrors.CodeAmountMismatch, "amount must equal the policy premium "+p.Premium.String())
	}
	return nil
}

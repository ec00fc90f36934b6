// Package events publishes policy and claim lifecycle events to external sinks.
//
// Managers emit only after the corresponding mutation is committed. Delivery is
// best effort: a failing sink is logged and counted but never fails the
// operation that produced the event.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"insurely/pkg/domain"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindInsurerGranted    Kind = "insurer_granted"
	KindPolicyIssued      Kind = "policy_issued"
	KindPremiumPaid       Kind = "premium_paid"
	KindClaimSubmitted    Kind = "claim_submitted"
	KindClaimApproved     Kind = "claim_approved"
	KindClaimRejected     Kind = "claim_rejected"
	KindClaimPaid         Kind = "claim_paid"
	KindClaimPayoutFailed Kind = "claim_payout_failed"
)

// Payload is the kind-specific body of an Event.
type Payload interface {
	Kind() Kind
	// AggregateKey identifies the entity the event belongs to. Sinks that
	// partition (Kafka) use it to keep per-entity order.
	AggregateKey() string
}

// Event is the envelope handed to sinks.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Kind         Kind      `json:"kind"`
	AggregateKey string    `json:"aggregate_key"`
	OccurredAt   time.Time `json:"occurred_at"`
	RequestID    string    `json:"request_id,omitempty"`
	Payload      Payload   `json:"payload"`
}

type InsurerGranted struct {
	Insurer   domain.Principal `json:"insurer"`
	GrantedBy domain.Principal `json:"granted_by"`
}

func (InsurerGranted) Kind() Kind             { return KindInsurerGranted }
func (p InsurerGranted) AggregateKey() string { return "insurer:" + p.Insurer.String() }

type PolicyIssued struct {
	PolicyID     domain.PolicyID  `json:"policy_id"`
	Policyholder domain.Principal `json:"policyholder"`
}

func (PolicyIssued) Kind() Kind             { return KindPolicyIssued }
func (p PolicyIssued) AggregateKey() string { return "policy:" + p.PolicyID.String() }

type PremiumPaid struct {
	PolicyID domain.PolicyID  `json:"policy_id"`
	Payer    domain.Principal `json:"payer"`
	Amount   decimal.Decimal  `json:"amount"`
}

func (PremiumPaid) Kind() Kind             { return KindPremiumPaid }
func (p PremiumPaid) AggregateKey() string { return "policy:" + p.PolicyID.String() }

type ClaimSubmitted struct {
	ClaimID  domain.ClaimID   `json:"claim_id"`
	PolicyID domain.PolicyID  `json:"policy_id"`
	Claimant domain.Principal `json:"claimant"`
}

func (ClaimSubmitted) Kind() Kind             { return KindClaimSubmitted }
func (p ClaimSubmitted) AggregateKey() string { return "claim:" + p.ClaimID.String() }

type ClaimApproved struct {
	ClaimID  domain.ClaimID   `json:"claim_id"`
	PolicyID domain.PolicyID  `json:"policy_id"`
	Claimant domain.Principal `json:"claimant"`
	Amount   decimal.Decimal  `json:"amount"`
}

func (ClaimApproved) Kind() Kind             { return KindClaimApproved }
func (p ClaimApproved) AggregateKey() string { return "claim:" + p.ClaimID.String() }

type ClaimRejected struct {
	ClaimID  domain.ClaimID   `json:"claim_id"`
	PolicyID domain.PolicyID  `json:"policy_id"`
	Claimant domain.Principal `json:"claimant"`
}

func (ClaimRejected) Kind() Kind             { return KindClaimRejected }
func (p ClaimRejected) AggregateKey() string { return "claim:" + p.ClaimID.String() }

type ClaimPaid struct {
	ClaimID     domain.ClaimID   `json:"claim_id"`
	PolicyID    domain.PolicyID  `json:"policy_id"`
	Claimant    domain.Principal `json:"claimant"`
	Amount      decimal.Decimal  `json:"amount"`
	TransferRef string           `json:"transfer_ref"`
}

func (ClaimPaid) Kind() Kind             { return KindClaimPaid }
func (p ClaimPaid) AggregateKey() string { return "claim:" + p.ClaimID.String() }

type ClaimPayoutFailed struct {
	ClaimID  domain.ClaimID  `json:"claim_id"`
	PolicyID domain.PolicyID `json:"policy_id"`
	Attempt  int             `json:"attempt"`
	Reason   string          `json:"reason"`
}

func (ClaimPayoutFailed) Kind() Kind             { return KindClaimPayoutFailed }
func (p ClaimPayoutFailed) AggregateKey() string { return "claim:" + p.ClaimID.String() }

package handler

import (
	"time"

	"insurely/internal/claim/models"
)

type SubmitClaimResponse struct {
	ClaimID int64 `json:"claim_id"`
}

type ClaimResponse struct {
	ClaimID         int64      `json:"claim_id"`
	PolicyID        int64      `json:"policy_id"`
	Claimant        string     `json:"claimant"`
	Amount          string     `json:"amount"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	DecidedBy       string     `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	PayoutAttempts  int        `json:"payout_attempts"`
	LastPayoutError string     `json:"last_payout_error,omitempty"`
	TransferRef     string     `json:"transfer_ref,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ClaimListResponse struct {
	Claims []*ClaimResponse `json:"claims"`
}

// FromClaim converts a claim to its HTTP representation.
func FromClaim(c *models.Claim) *ClaimResponse {
	return &ClaimResponse{
		ClaimID:         int64(c.ID),
		PolicyID:        int64(c.PolicyID),
		Claimant:        c.Claimant.String(),
		Amount:          c.Amount.String(),
		Reason:          c.Reason,
		Status:          string(c.Status),
		DecidedBy:       c.DecidedBy.String(),
		DecidedAt:       c.DecidedAt,
		PayoutAttempts:  c.PayoutAttempts,
		LastPayoutError: c.LastPayoutError,
		TransferRef:     c.TransferRef,
		PaidAt:          c.PaidAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func fromClaims(claims []*models.Claim) *ClaimListResponse {
	out := &ClaimListResponse{Claims: make([]*ClaimResponse, 0, len(claims))}
	for _, c := range claims {
		out.Claims = append(out.Claims, FromClaim(c))
	}
	return out
}

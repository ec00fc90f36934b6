package handler

import (
	"time"

	"insurely/internal/policy/models"
)

type IssuePolicyResponse struct {
	PolicyID int64 `json:"policy_id"`
}

type PolicyResponse struct {
	PolicyID       int64     `json:"policy_id"`
	Policyholder   string    `json:"policyholder"`
	Premium        string    `json:"premium"`
	CoverageAmount string    `json:"coverage_amount"`
	Expiration     time.Time `json:"expiration"`
	Status         string    `json:"status"`
	Expired        bool      `json:"expired"`
	IssuedBy       string    `json:"issued_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromPolicy renders a policy as seen at now.
func FromPolicy(p *models.Policy, now time.Time) *PolicyResponse {
	return &PolicyResponse{
		PolicyID:       int64(p.ID),
		Policyholder:   p.Policyholder.String(),
		Premium:        p.Premium.String(),
		CoverageAmount: p.CoverageAmount.String(),
		Expiration:     p.Expiration,
		Status:         string(p.Status),
		Expired:        p.IsExpiredAt(now),
		IssuedBy:       p.IssuedBy.String(),
		CreatedAt:      p.CreatedAt,
	}
}

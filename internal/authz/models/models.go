package models

import (
	"time"

	"insurely/pkg/domain"
)

// Grant records a principal holding the insurer role.
//
// Invariants:
//   - Principal is unique within the registry
//   - Grants are never revoked; GrantedAt is immutable
type Grant struct {
	Principal domain.Principal `json:"principal"`
	GrantedBy domain.Principal `json:"granted_by"`
	GrantedAt time.Time        `json:"granted_at"`
}

package handler

import (
	"time"

	"insurely/internal/authz/models"
)

type GrantInsurerResponse struct {
	Principal string `json:"principal"`
	Granted   bool   `json:"granted"`
}

type InsurerStatusResponse struct {
	Principal string `json:"principal"`
	IsInsurer bool   `json:"is_insurer"`
}

type InsurerResponse struct {
	Principal string    `json:"principal"`
	GrantedBy string    `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}

type InsurerListResponse struct {
	Insurers []InsurerResponse `json:"insurers"`
}

func fromGrants(grants []*models.Grant) *InsurerListResponse {
	out := &InsurerListResponse{Insurers: make([]InsurerResponse, 0, len(grants))}
	for _, g := range grants {
		out.Insurers = append(out.Insurers, InsurerResponse{
			Principal: g.Principal.String(),
			GrantedBy: g.GrantedBy.String(),
			GrantedAt: g.GrantedAt,
		})
	}
	return out
}

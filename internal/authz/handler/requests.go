package handler

import (
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
)

// GrantInsurerRequest is the body of POST /admin/insurers.
type GrantInsurerRequest struct {
	Principal string `json:"principal"`

	parsed domain.Principal
}

func (r *GrantInsurerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	p, err := domain.ParsePrincipal(r.Principal)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "principal is invalid")
	}
	r.parsed = p
	return nil
}

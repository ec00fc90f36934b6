package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"insurely/internal/authz/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/httputil"
	"insurely/pkg/requestcontext"
)

// Service defines the role registry operations exposed over HTTP.
type Service interface {
	GrantInsurer(ctx context.Context, caller, target domain.Principal) (bool, error)
	IsInsurer(ctx context.Context, principal domain.Principal) (bool, error)
	ListInsurers(ctx context.Context) ([]*models.Grant, error)
}

// Handler wires role registry endpoints to the authz service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts role registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/insurers", h.HandleGrantInsurer)
	r.Get("/insurers", h.HandleListInsurers)
	r.Get("/insurers/{principal}", h.HandleIsInsurer)
}

// HandleGrantInsurer handles POST /admin/insurers. Granting an existing
// insurer succeeds with granted=false.
func (h *Handler) HandleGrantInsurer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[GrantInsurerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	granted, err := h.service.GrantInsurer(ctx, caller, req.parsed)
	if err != nil {
		h.logger.WarnContext(ctx, "grant insurer failed",
			"request_id", requestID,
			"principal", caller,
			"target", req.parsed,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &GrantInsurerResponse{
		Principal: req.parsed.String(),
		Granted:   granted,
	})
}

// HandleIsInsurer handles GET /insurers/{principal}.
func (h *Handler) HandleIsInsurer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	isInsurer, err := h.service.IsInsurer(ctx, principal)
	if err != nil {
		h.logger.ErrorContext(ctx, "insurer lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &InsurerStatusResponse{
		Principal: principal.String(),
		IsInsurer: isInsurer,
	})
}

// HandleListInsurers handles GET /insurers.
func (h *Handler) HandleListInsurers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	grants, err := h.service.ListInsurers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list insurers failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromGrants(grants))
}

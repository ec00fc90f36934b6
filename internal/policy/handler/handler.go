package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/httputil"
	"insurely/pkg/requestcontext"
)

// Service defines the policy operations exposed over HTTP.
type Service interface {
	IssuePolicy(ctx context.Context, caller domain.Principal, req models.IssueRequest) (*models.Policy, error)
	PayPremium(ctx context.Context, caller domain.Principal, id domain.PolicyID, amount decimal.Decimal) error
	GetPolicy(ctx context.Context, id domain.PolicyID) (*models.Policy, error)
}

// Handler wires policy endpoints to the policy service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.HandleIssue)
	r.Get("/policies/{policyID}", h.HandleGet)
	r.Post("/policies/{policyID}/premiums", h.HandlePayPremium)
}

// HandleIssue handles POST /policies.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssuePolicyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	policy, err := h.service.IssuePolicy(ctx, caller, req.parsed)
	if err != nil {
		h.logger.WarnContext(ctx, "issue policy failed",
			"request_id", requestID,
			"principal", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "issue policy handled",
		"request_id", requestID,
		"policy_id", policy.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, &IssuePolicyResponse{PolicyID: int64(policy.ID)})
}

// HandleGet handles GET /policies/{policyID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	policy, err := h.service.GetPolicy(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPolicy(policy, requestcontext.Now(ctx)))
}

// HandlePayPremium handles POST /policies/{policyID}/premiums.
func (h *Handler) HandlePayPremium(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[PayPremiumRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.PayPremium(ctx, caller, id, req.parsed); err != nil {
		h.logger.WarnContext(ctx, "pay premium failed",
			"request_id", requestID,
			"principal", caller,
			"policy_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

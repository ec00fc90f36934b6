package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"insurely/internal/claim/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/httputil"
	"insurely/pkg/requestcontext"
)

// Service defines the claim operations exposed over HTTP.
type Service interface {
	SubmitClaim(ctx context.Context, caller domain.Principal, policyID domain.PolicyID, amount decimal.Decimal, reason string) (*models.Claim, error)
	ApproveClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error)
	RejectClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error)
	GetClaim(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	ListClaimsByPolicy(ctx context.Context, policyID domain.PolicyID) ([]*models.Claim, error)
}

// Handler wires claim endpoints to the claim service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts claim endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies/{policyID}/claims", h.HandleSubmit)
	r.Get("/policies/{policyID}/claims", h.HandleList)
	r.Get("/claims/{claimID}", h.HandleGet)
	r.Post("/claims/{claimID}/approve", h.HandleApprove)
	r.Post("/claims/{claimID}/reject", h.HandleReject)
}

// HandleSubmit handles POST /policies/{policyID}/claims.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitClaimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	claim, err := h.service.SubmitClaim(ctx, caller, policyID, req.parsedAmount, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "submit claim failed",
			"request_id", requestID,
			"principal", caller,
			"policy_id", policyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &SubmitClaimResponse{ClaimID: int64(claim.ID)})
}

// HandleList handles GET /policies/{policyID}/claims.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := domain.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claims, err := h.service.ListClaimsByPolicy(ctx, policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromClaims(claims))
}

// HandleGet handles GET /claims/{claimID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.service.GetClaim(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaim(claim))
}

// HandleApprove handles POST /claims/{claimID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve", h.service.ApproveClaim)
}

// HandleReject handles POST /claims/{claimID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject", h.service.RejectClaim)
}

type decideFunc func(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action string, fn decideFunc) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Principal(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := domain.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := fn(ctx, caller, id)
	if err != nil {
		h.logger.WarnContext(ctx, action+" claim failed",
			"request_id", requestID,
			"principal", caller,
			"claim_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaim(claim))
}

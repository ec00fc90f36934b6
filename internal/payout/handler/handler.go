// Package handler exposes claim payout over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	claimhandler "insurely/internal/claim/handler"
	"insurely/internal/claim/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/httputil"
	"insurely/pkg/requestcontext"
)

type Service interface {
	PayClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/claims/{claimID}/pay", h.HandlePay)
}

// HandlePay handles POST /claims/{claimID}/pay. A failed transfer answers 502
// and leaves the claim payable again.
func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

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

	claim, err := h.service.PayClaim(ctx, caller, id)
	if err != nil {
		h.logger.WarnContext(ctx, "pay claim failed",
			"request_id", requestID,
			"principal", caller,
			"claim_id", id,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pay claim handled",
		"request_id", requestID,
		"claim_id", id,
		"transfer_ref", claim.TransferRef,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, claimhandler.FromClaim(claim))
}

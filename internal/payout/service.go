// Package payout pays approved claims exactly once.
//
// A payout holds the claim lock for its whole duration: the status moves to
// payment_in_flight, the treasury is called, and the outcome (paid_out or
// payment_failed) is written before the lock is released. Every write is a
// compare-and-swap on the claim status, and every attempt reuses the claim's
// idempotency key, so neither a second instance nor a retry can pay twice.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"insurely/internal/claim/models"
	"insurely/internal/events"
	"insurely/internal/platform/lock"
	"insurely/internal/platform/metrics"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/requestcontext"
)

var tracer = otel.Tracer("insurely/internal/payout")

const (
	outcomePaid       = "paid"
	outcomeFailed     = "transfer_failed"
	outcomeRefused    = "refused"
	outcomeUnrecorded = "unrecorded"
)

type ClaimStore interface {
	FindByID(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	UpdateStatus(ctx context.Context, claim *models.Claim, from models.ClaimStatus) error
}

type Authorizer interface {
	RequireInsurer(ctx context.Context, caller domain.Principal) error
}

type EventEmitter interface {
	Emit(ctx context.Context, payload events.Payload)
}

type Coordinator struct {
	claims   ClaimStore
	treasury Treasury
	authz    Authorizer
	locker   lock.Locker
	logger   *slog.Logger
	events   EventEmitter
	metrics  *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithEvents(emitter EventEmitter) Option {
	return func(c *Coordinator) {
		c.events = emitter
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(claims ClaimStore, treasury Treasury, authz Authorizer, locker lock.Locker, opts ...Option) *Coordinator {
	c := &Coordinator{
		claims:   claims,
		treasury: treasury,
		authz:    authz,
		locker:   locker,
		logger:   slog.Default(),
		events:   events.NewEmitter(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PayClaim transfers the claim amount to the claimant. Approved claims and
// claims whose last transfer failed are payable; a paid claim returns
// AlreadyPaid. A treasury failure leaves the claim in payment_failed and
// returns TransferFailed.
func (c *Coordinator) PayClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "payout.PayClaim")
	defer span.End()
	span.SetAttributes(attribute.Int64("claim.id", int64(id)))

	claim, outcome, err := c.payClaim(ctx, caller, id)
	c.metrics.ObservePayout(outcome, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	return claim, nil
}

func (c *Coordinator) payClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, string, error) {
	if err := c.authz.RequireInsurer(ctx, caller); err != nil {
		return nil, outcomeRefused, err
	}

	release, err := c.locker.Acquire(ctx, lock.ClaimKey(id.String()))
	if err != nil {
		return nil, outcomeRefused, err
	}
	defer release()

	claim, err := c.claims.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, outcomeRefused, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, outcomeRefused, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	if err := claim.CanPay(); err != nil {
		return nil, outcomeRefused, err
	}

	from := claim.Status
	claim.ApplyPayoutStarted(requestcontext.Now(ctx))
	if err := c.claims.UpdateStatus(ctx, claim, from); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, outcomeRefused, dErrors.New(dErrors.CodeInvalidState, "claim status changed concurrently")
		}
		return nil, outcomeRefused, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark payout in flight")
	}

	// From here on the caller can no longer cancel: the outcome must be recorded.
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With(
		"claim_id", claim.ID.String(),
		"policy_id", claim.PolicyID.String(),
		"attempt", claim.PayoutAttempts,
		"request_id", requestcontext.RequestID(ctx),
	)

	receipt, transferErr := c.transfer(ctx, claim)
	now := requestcontext.Now(ctx)

	if transferErr != nil {
		claim.ApplyPayoutFailed(transferErr.Error(), now)
		if err := c.claims.UpdateStatus(ctx, claim, models.ClaimStatusPaymentInFlight); err != nil {
			log.ErrorContext(ctx, "payout failed and failure could not be recorded; claim left in flight",
				"transfer_error", transferErr,
				"error", err,
			)
			return nil, outcomeUnrecorded, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payout failure")
		}
		log.WarnContext(ctx, "claim payout failed", "error", transferErr)
		c.events.Emit(ctx, events.ClaimPayoutFailed{
			ClaimID:  claim.ID,
			PolicyID: claim.PolicyID,
			Attempt:  claim.PayoutAttempts,
			Reason:   claim.LastPayoutError,
		})
		return nil, outcomeFailed, dErrors.Wrap(transferErr, dErrors.CodeTransferFailed, "treasury transfer failed")
	}

	claim.ApplyPayoutSucceeded(receipt.Reference, now)
	if err := c.claims.UpdateStatus(ctx, claim, models.ClaimStatusPaymentInFlight); err != nil {
		log.ErrorContext(ctx, "payout settled but could not be recorded; claim left in flight",
			"transfer_ref", receipt.Reference,
			"error", err,
		)
		return nil, outcomeUnrecorded, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payout")
	}

	log.InfoContext(ctx, "claim paid out",
		"claimant", claim.Claimant.String(),
		"amount", claim.Amount.String(),
		"transfer_ref", receipt.Reference,
	)
	c.events.Emit(ctx, events.ClaimPaid{
		ClaimID:     claim.ID,
		PolicyID:    claim.PolicyID,
		Claimant:    claim.Claimant,
		Amount:      claim.Amount,
		TransferRef: receipt.Reference,
	})
	return claim, outcomePaid, nil
}

func (c *Coordinator) transfer(ctx context.Context, claim *models.Claim) (TransferReceipt, error) {
	ctx, span := tracer.Start(ctx, "treasury.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.idempotency_key", claim.IdempotencyKey()),
		attribute.String("transfer.amount", claim.Amount.String()),
	)

	receipt, err := c.treasury.Transfer(ctx, TransferRequest{
		IdempotencyKey: claim.IdempotencyKey(),
		To:             claim.Claimant,
		Amount:         claim.Amount,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		return TransferReceipt{}, err
	}
	if receipt.Reference == "" {
		err := errors.New("treasury returned an empty transfer reference")
		span.RecordError(err)
		return TransferReceipt{}, err
	}
	return receipt, nil
}

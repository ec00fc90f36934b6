// Package service implements claim submission and adjudication.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"insurely/internal/claim/models"
	"insurely/internal/events"
	"insurely/internal/platform/lock"
	"insurely/internal/platform/metrics"
	policymodels "insurely/internal/policy/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/platform/tx"
	"insurely/pkg/requestcontext"
)

var tracer = otel.Tracer("insurely/internal/claim")

type Store interface {
	NextID(ctx context.Context) (domain.ClaimID, error)
	Save(ctx context.Context, claim *models.Claim) error
	FindByID(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	ListByPolicy(ctx context.Context, policyID domain.PolicyID) ([]*models.Claim, error)
	UpdateStatus(ctx context.Context, claim *models.Claim, from models.ClaimStatus) error
}

// PolicyReader resolves policies, returning domain errors (NotFound).
type PolicyReader interface {
	GetPolicy(ctx context.Context, id domain.PolicyID) (*policymodels.Policy, error)
}

type Authorizer interface {
	RequireInsurer(ctx context.Context, caller domain.Principal) error
}

type EventEmitter interface {
	Emit(ctx context.Context, payload events.Payload)
}

// Service runs the claim state machine up to the approve/reject decision.
// Submission holds the policy lock; decisions hold the claim lock.
type Service struct {
	claims   Store
	policies PolicyReader
	tx       tx.Runner
	authz    Authorizer
	locker   lock.Locker
	logger   *slog.Logger
	events   EventEmitter
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(emitter EventEmitter) Option {
	return func(s *Service) {
		s.events = emitter
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(claims Store, policies PolicyReader, runner tx.Runner, authz Authorizer, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		claims:   claims,
		policies: policies,
		tx:       runner,
		authz:    authz,
		locker:   locker,
		logger:   slog.Default(),
		events:   events.NewEmitter(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitClaim files a claim against a policy on behalf of its holder. The
// amount is not checked against the policy coverage and the reason is stored
// as sent.
func (s *Service) SubmitClaim(ctx context.Context, caller domain.Principal, policyID domain.PolicyID, amount decimal.Decimal, reason string) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.SubmitClaim")
	defer span.End()
	span.SetAttributes(attribute.Int64("policy.id", int64(policyID)))

	release, err := s.locker.Acquire(ctx, lock.PolicyKey(policyID.String()))
	if err != nil {
		return nil, err
	}
	defer release()

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if err := policy.CheckHolderAccess(caller, now); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "claim amount must be greater than zero")
	}
	if err := domain.CheckAmountBounds(amount, "claim amount"); err != nil {
		return nil, err
	}
	if len(reason) > models.MaxReasonLength {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is too long")
	}

	var claim *models.Claim
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		id, err := s.claims.NextID(ctx)
		if err != nil {
			return err
		}
		claim, err = models.NewClaim(id, policyID, caller, amount, reason, now)
		if err != nil {
			return err
		}
		return s.claims.Save(ctx, claim)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit claim")
	}
	span.SetAttributes(attribute.Int64("claim.id", int64(claim.ID)))

	s.logger.InfoContext(ctx, "claim submitted",
		"claim_id", claim.ID.String(),
		"policy_id", policyID.String(),
		"claimant", caller.String(),
		"amount", amount.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.metrics.IncrementClaimsSubmitted()
	s.events.Emit(ctx, events.ClaimSubmitted{ClaimID: claim.ID, PolicyID: policyID, Claimant: caller})
	return claim, nil
}

// ApproveClaim records an insurer's approval. The referenced policy must still
// be active. Approval moves no funds.
func (s *Service) ApproveClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.ApproveClaim")
	defer span.End()
	span.SetAttributes(attribute.Int64("claim.id", int64(id)))

	claim, err := s.decide(ctx, caller, id, true)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.ClaimApproved{
		ClaimID:  claim.ID,
		PolicyID: claim.PolicyID,
		Claimant: claim.Claimant,
		Amount:   claim.Amount,
	})
	return claim, nil
}

// RejectClaim records an insurer's rejection. Unlike approval it does not
// require the policy to be active.
func (s *Service) RejectClaim(ctx context.Context, caller domain.Principal, id domain.ClaimID) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.RejectClaim")
	defer span.End()
	span.SetAttributes(attribute.Int64("claim.id", int64(id)))

	claim, err := s.decide(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.ClaimRejected{
		ClaimID:  claim.ID,
		PolicyID: claim.PolicyID,
		Claimant: claim.Claimant,
	})
	return claim, nil
}

func (s *Service) decide(ctx context.Context, caller domain.Principal, id domain.ClaimID, approve bool) (*models.Claim, error) {
	if err := s.authz.RequireInsurer(ctx, caller); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.ClaimKey(id.String()))
	if err != nil {
		return nil, err
	}
	defer release()

	claim, err := s.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if approve {
		policy, err := s.policies.GetPolicy(ctx, claim.PolicyID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeInternal, "claim references a missing policy")
			}
			return nil, err
		}
		if !policy.IsActive() {
			return nil, dErrors.New(dErrors.CodeInvalidState, "policy is not active")
		}
	}
	if err := claim.CanDecide(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	decision := "rejected"
	if approve {
		decision = "approved"
		claim.ApplyApproval(caller, now)
	} else {
		claim.ApplyRejection(caller, now)
	}

	if err := s.claims.UpdateStatus(ctx, claim, models.ClaimStatusSubmitted); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "claim is no longer submitted")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record claim decision")
	}

	s.logger.InfoContext(ctx, "claim "+decision,
		"claim_id", claim.ID.String(),
		"policy_id", claim.PolicyID.String(),
		"decided_by", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.metrics.IncrementClaimDecision(decision)
	return claim, nil
}

// GetClaim returns the claim or NotFound.
func (s *Service) GetClaim(ctx context.Context, id domain.ClaimID) (*models.Claim, error) {
	claim, err := s.claims.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return claim, nil
}

// ListClaimsByPolicy returns the policy's claims in id order.
func (s *Service) ListClaimsByPolicy(ctx context.Context, policyID domain.PolicyID) ([]*models.Claim, error) {
	if _, err := s.policies.GetPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	claims, err := s.claims.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

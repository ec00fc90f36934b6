// Package service implements policy issuance and premium payment.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"insurely/internal/events"
	"insurely/internal/platform/lock"
	"insurely/internal/platform/metrics"
	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/platform/tx"
	"insurely/pkg/requestcontext"
)

var tracer = otel.Tracer("insurely/internal/policy")

type Store interface {
	NextID(ctx context.Context) (domain.PolicyID, error)
	Save(ctx context.Context, policy *models.Policy) error
	FindByID(ctx context.Context, id domain.PolicyID) (*models.Policy, error)
}

type Authorizer interface {
	RequireInsurer(ctx context.Context, caller domain.Principal) error
}

type EventEmitter interface {
	Emit(ctx context.Context, payload events.Payload)
}

// Service issues policies and accepts premium payments. Mutating operations
// on one policy are serialized through the policy lock.
type Service struct {
	store   Store
	tx      tx.Runner
	authz   Authorizer
	locker  lock.Locker
	logger  *slog.Logger
	events  EventEmitter
	metrics *metrics.Metrics
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

func New(store Store, runner tx.Runner, authz Authorizer, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     runner,
		authz:  authz,
		locker: locker,
		logger: slog.Default(),
		events: events.NewEmitter(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssuePolicy creates an active policy with the next policy id. Only insurers
// may issue.
func (s *Service) IssuePolicy(ctx context.Context, caller domain.Principal, req models.IssueRequest) (*models.Policy, error) {
	ctx, span := tracer.Start(ctx, "policy.IssuePolicy")
	defer span.End()

	if err := s.authz.RequireInsurer(ctx, caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var policy *models.Policy
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		id, err := s.store.NextID(ctx)
		if err != nil {
			return err
		}
		policy, err = models.NewPolicy(id, req, caller, now)
		if err != nil {
			return err
		}
		return s.store.Save(ctx, policy)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue policy")
	}
	span.SetAttributes(attribute.Int64("policy.id", int64(policy.ID)))

	s.logger.InfoContext(ctx, "policy issued",
		"policy_id", policy.ID.String(),
		"policyholder", policy.Policyholder.String(),
		"issued_by", caller.String(),
		"expiration", policy.Expiration,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.metrics.IncrementPoliciesIssued()
	s.events.Emit(ctx, events.PolicyIssued{PolicyID: policy.ID, Policyholder: policy.Policyholder})
	return policy, nil
}

// PayPremium accepts a payment of exactly the policy premium from its holder.
// Nothing is persisted: the PremiumPaid event is the record. Repeat payments
// are accepted.
func (s *Service) PayPremium(ctx context.Context, caller domain.Principal, id domain.PolicyID, amount decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "policy.PayPremium")
	defer span.End()
	span.SetAttributes(attribute.Int64("policy.id", int64(id)))

	release, err := s.locker.Acquire(ctx, lock.PolicyKey(id.String()))
	if err != nil {
		return err
	}
	defer release()

	policy, err := s.GetPolicy(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CheckPremium(caller, amount, requestcontext.Now(ctx)); err != nil {
		s.logger.InfoContext(ctx, "premium rejected",
			"policy_id", id.String(),
			"payer", caller.String(),
			"reason", string(dErrors.CodeOf(err)),
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}

	s.logger.InfoContext(ctx, "premium paid",
		"policy_id", id.String(),
		"payer", caller.String(),
		"amount", amount.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.metrics.IncrementPremiumsPaid()
	s.events.Emit(ctx, events.PremiumPaid{PolicyID: id, Payer: caller, Amount: amount})
	return nil
}

// GetPolicy returns the policy or NotFound.
func (s *Service) GetPolicy(ctx context.Context, id domain.PolicyID) (*models.Policy, error) {
	policy, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return policy, nil
}

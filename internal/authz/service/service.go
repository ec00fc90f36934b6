// Package service implements the authorization registry: one administrator and
// the set of principals holding the insurer role.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"insurely/internal/authz/models"
	"insurely/internal/events"
	"insurely/internal/platform/metrics"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/sentinel"
	"insurely/pkg/requestcontext"
)

type Store interface {
	Administrator(ctx context.Context) (domain.Principal, error)
	SetAdministratorIfAbsent(ctx context.Context, admin domain.Principal, now time.Time) (domain.Principal, error)
	AddInsurer(ctx context.Context, grant *models.Grant) (bool, error)
	IsInsurer(ctx context.Context, principal domain.Principal) (bool, error)
	ListInsurers(ctx context.Context) ([]*models.Grant, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, payload events.Payload)
}

// Service owns role checks. Other managers depend on it through RequireInsurer.
type Service struct {
	store   Store
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

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		events: events.NewEmitter(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap sets the administrator at startup. A previously persisted
// administrator wins so restarts never silently change ownership.
func (s *Service) Bootstrap(ctx context.Context, admin domain.Principal) error {
	if admin.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "administrator principal is required")
	}
	stored, err := s.store.SetAdministratorIfAbsent(ctx, admin, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize registry")
	}
	if stored != admin {
		s.logger.WarnContext(ctx, "configured administrator ignored; registry already owned",
			"configured", admin.String(),
			"administrator", stored.String(),
		)
	}
	return nil
}

// GrantInsurer adds target to the insurer set. Only the administrator may call
// it. Granting an existing insurer is a no-op and reports added=false.
func (s *Service) GrantInsurer(ctx context.Context, caller, target domain.Principal) (bool, error) {
	admin, err := s.Administrator(ctx)
	if err != nil {
		return false, err
	}
	if caller.IsNil() || caller != admin {
		s.logger.WarnContext(ctx, "insurer grant denied",
			"caller", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return false, dErrors.New(dErrors.CodeUnauthorized, "only the administrator may grant the insurer role")
	}
	if target.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "target principal is required")
	}

	added, err := s.store.AddInsurer(ctx, &models.Grant{
		Principal: target,
		GrantedBy: caller,
		GrantedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant insurer role")
	}
	if !added {
		return false, nil
	}

	s.logger.InfoContext(ctx, "insurer granted",
		"insurer", target.String(),
		"granted_by", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.metrics.IncrementInsurersGranted()
	s.events.Emit(ctx, events.InsurerGranted{Insurer: target, GrantedBy: caller})
	return true, nil
}

func (s *Service) IsInsurer(ctx context.Context, principal domain.Principal) (bool, error) {
	if principal.IsNil() {
		return false, nil
	}
	ok, err := s.store.IsInsurer(ctx, principal)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check insurer role")
	}
	return ok, nil
}

// RequireInsurer returns Unauthorized unless caller holds the insurer role.
func (s *Service) RequireInsurer(ctx context.Context, caller domain.Principal) error {
	ok, err := s.IsInsurer(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an insurer")
	}
	return nil
}

func (s *Service) Administrator(ctx context.Context) (domain.Principal, error) {
	admin, err := s.store.Administrator(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInternal, "registry has no administrator")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load administrator")
	}
	return admin, nil
}

func (s *Service) ListInsurers(ctx context.Context) ([]*models.Grant, error) {
	grants, err := s.store.ListInsurers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list insurers")
	}
	return grants, nil
}

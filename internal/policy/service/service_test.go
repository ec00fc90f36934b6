package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	authzservice "insurely/internal/authz/service"
	authzstore "insurely/internal/authz/store"
	"insurely/internal/events"
	"insurely/internal/platform/lock"
	"insurely/internal/policy/models"
	"insurely/internal/policy/store"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/tx"
	"insurely/pkg/requestcontext"
)

const (
	admin   domain.Principal = "admin"
	insurer domain.Principal = "insurer"
	holder  domain.Principal = "alice"
)

var (
	issueTime  = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	thirtyDays = 30 * 24 * time.Hour
)

type PolicyServiceSuite struct {
	suite.Suite
	ctx      context.Context
	recorder *events.Recorder
	service  *Service
}

func TestPolicyServiceSuite(t *testing.T) {
	suite.Run(t, new(PolicyServiceSuite))
}

func (s *PolicyServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), issueTime)

	registry := authzservice.New(authzstore.NewInMemory())
	s.Require().NoError(registry.Bootstrap(s.ctx, admin))
	_, err := registry.GrantInsurer(s.ctx, admin, insurer)
	s.Require().NoError(err)

	s.recorder = events.NewRecorder()
	s.service = New(store.NewInMemory(), tx.NewLocalRunner(time.Second), registry, lock.NewKeyedMutex(),
		WithEvents(events.NewEmitter([]events.Sink{s.recorder})),
	)
}

func (s *PolicyServiceSuite) issue(req models.IssueRequest) *models.Policy {
	p, err := s.service.IssuePolicy(s.ctx, insurer, req)
	s.Require().NoError(err)
	return p
}

func standardTerms() models.IssueRequest {
	return models.IssueRequest{
		Policyholder:   holder,
		Premium:        decimal.NewFromInt(100),
		CoverageAmount: decimal.NewFromInt(1000),
		Duration:       thirtyDays,
	}
}

func (s *PolicyServiceSuite) TestIssuePolicy() {
	s.Run("issues first policy with id 1 and computed expiration", func() {
		p := s.issue(standardTerms())

		s.Equal(domain.PolicyID(1), p.ID)
		s.Equal(models.PolicyStatusActive, p.Status)
		s.Equal(issueTime.Add(thirtyDays), p.Expiration)
		s.Equal(insurer, p.IssuedBy)

		stored, err := s.service.GetPolicy(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(p, stored)

		issued := s.recorder.OfKind(events.KindPolicyIssued)
		s.Require().Len(issued, 1)
		s.Equal(events.PolicyIssued{PolicyID: 1, Policyholder: holder}, issued[0].Payload)
	})

	s.Run("ids increase strictly", func() {
		p := s.issue(standardTerms())
		s.Equal(domain.PolicyID(2), p.ID)
	})

	s.Run("non-insurer is unauthorized and nothing is allocated", func() {
		_, err := s.service.IssuePolicy(s.ctx, holder, standardTerms())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		p := s.issue(standardTerms())
		s.Equal(domain.PolicyID(3), p.ID)
	})

	s.Run("invalid terms fail validation", func() {
		for name, mutate := range map[string]func(*models.IssueRequest){
			"zero premium":       func(r *models.IssueRequest) { r.Premium = decimal.Zero },
			"negative coverage":  func(r *models.IssueRequest) { r.CoverageAmount = decimal.NewFromInt(-1) },
			"empty policyholder": func(r *models.IssueRequest) { r.Policyholder = "" },
		} {
			req := standardTerms()
			mutate(&req)
			_, err := s.service.IssuePolicy(s.ctx, insurer, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})

	s.Run("zero duration is accepted as already expired", func() {
		req := standardTerms()
		req.Duration = 0
		p := s.issue(req)
		s.Equal(issueTime, p.Expiration)
	})
}

func (s *PolicyServiceSuite) TestIssuePolicy_ConcurrentIDsAreDense() {
	const n = 25
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.service.IssuePolicy(s.ctx, insurer, standardTerms())
			if err == nil {
				ids[i] = int(p.ID)
			}
		}()
	}
	wg.Wait()

	sort.Ints(ids)
	for i, id := range ids {
		s.Equal(i+1, id)
	}
}

func (s *PolicyServiceSuite) TestPayPremium() {
	p := s.issue(standardTerms())
	hundred := decimal.NewFromInt(100)

	s.Run("holder pays exact premium", func() {
		s.recorder.Reset()
		s.Require().NoError(s.service.PayPremium(s.ctx, holder, p.ID, hundred))

		paid := s.recorder.OfKind(events.KindPremiumPaid)
		s.Require().Len(paid, 1)
		s.Equal(events.PremiumPaid{PolicyID: p.ID, Payer: holder, Amount: hundred}, paid[0].Payload)
	})

	s.Run("paying again succeeds again", func() {
		s.recorder.Reset()
		s.Require().NoError(s.service.PayPremium(s.ctx, holder, p.ID, hundred))
		s.Len(s.recorder.OfKind(events.KindPremiumPaid), 1)
	})

	s.Run("equal value with different scale matches", func() {
		s.NoError(s.service.PayPremium(s.ctx, holder, p.ID, decimal.RequireFromString("100.00")))
	})

	s.Run("each violated condition yields its own error", func() {
		afterExpiry := requestcontext.WithTime(context.Background(), p.Expiration.Add(time.Second))
		atExpiry := requestcontext.WithTime(context.Background(), p.Expiration)

		cases := []struct {
			name   string
			ctx    context.Context
			caller domain.Principal
			id     domain.PolicyID
			amount decimal.Decimal
			code   dErrors.Code
		}{
			{"unknown policy", s.ctx, holder, 99, hundred, dErrors.CodeNotFound},
			{"wrong caller", s.ctx, "bob", p.ID, hundred, dErrors.CodeForbidden},
			{"insurer is not the holder", s.ctx, insurer, p.ID, hundred, dErrors.CodeForbidden},
			{"expired", afterExpiry, holder, p.ID, hundred, dErrors.CodeExpired},
			{"wrong amount", s.ctx, holder, p.ID, decimal.NewFromInt(50), dErrors.CodeAmountMismatch},
		}
		for _, tc := range cases {
			s.recorder.Reset()
			err := s.service.PayPremium(tc.ctx, tc.caller, tc.id, tc.amount)
			s.True(dErrors.HasCode(err, tc.code), "%s: got %v", tc.name, err)
			s.Empty(s.recorder.Events(), "%s: no event on failure", tc.name)
		}

		s.NoError(s.service.PayPremium(atExpiry, holder, p.ID, hundred), "expiration instant is covered")
	})
}

func (s *PolicyServiceSuite) TestPayPremium_InactivePolicy() {
	inactive := &models.Policy{
		ID:             1,
		Policyholder:   holder,
		Premium:        decimal.NewFromInt(100),
		CoverageAmount: decimal.NewFromInt(1000),
		Expiration:     issueTime.Add(time.Hour),
		Status:         models.PolicyStatusInactive,
	}
	policies := store.NewInMemory()
	s.Require().NoError(policies.Save(s.ctx, inactive))
	svc := New(policies, tx.NewLocalRunner(time.Second), nil, lock.NewKeyedMutex())

	err := svc.PayPremium(s.ctx, holder, 1, decimal.NewFromInt(100))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

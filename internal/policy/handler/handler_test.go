package handler

//go:generate mockgen -source=handler.go -destination=mocks/service.go -package=mocks Service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"insurely/internal/policy/handler/mocks"
	"insurely/internal/policy/models"
	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *http.Request {
	return testutil.WithTime(req, s.now)
}

func (s *HandlerSuite) TestIssue() {
	s.Run("parses amounts and duration", func() {
		s.service.EXPECT().
			IssuePolicy(gomock.Any(), domain.Principal("insurer"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Principal, req models.IssueRequest) (*models.Policy, error) {
				s.Equal(domain.Principal("holder"), req.Policyholder)
				s.True(req.Premium.Equal(decimal.RequireFromString("12.50")))
				s.True(req.CoverageAmount.Equal(decimal.NewFromInt(1000)))
				s.Equal(90*time.Second, req.Duration)
				return &models.Policy{ID: 7}, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{
			"policyholder":     " holder ",
			"premium":          "12.50",
			"coverage_amount":  "1000",
			"duration_seconds": 90,
		})
		rr := testutil.DoRequest(s.router, s.do(testutil.WithPrincipal(req, "insurer")))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[IssuePolicyResponse](s.T(), rr)
		s.Equal(int64(7), resp.PolicyID)
	})

	s.Run("requires a principal", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("rejects malformed decimals before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{
			"policyholder":     "holder",
			"premium":          "twelve",
			"coverage_amount":  "1000",
			"duration_seconds": 90,
		})
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, "insurer"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("rejects amounts outside the ledger precision", func() {
		cases := []struct {
			name     string
			premium  string
			coverage string
		}{
			{"exponent premium", "1e50000000", "1000"},
			{"premium below scale", "100.00005", "1000"},
			{"oversized coverage", "100", "99999999999999999"},
		}
		for _, tc := range cases {
			req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{
				"policyholder":     "holder",
				"premium":          tc.premium,
				"coverage_amount":  tc.coverage,
				"duration_seconds": 90,
			})
			rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, "insurer"))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		}
	})

	s.Run("rejects unknown fields", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/policies", `{"policyholder":"holder","tenant":"x"}`)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, "insurer"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("surfaces service errors", func() {
		s.service.EXPECT().
			IssuePolicy(gomock.Any(), domain.Principal("mallory"), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "caller is not an insurer"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{
			"policyholder":     "holder",
			"premium":          "1",
			"coverage_amount":  "1",
			"duration_seconds": 1,
		})
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, "mallory"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *HandlerSuite) TestGet() {
	s.Run("renders expiry relative to the request clock", func() {
		s.service.EXPECT().GetPolicy(gomock.Any(), domain.PolicyID(3)).Return(&models.Policy{
			ID:             3,
			Policyholder:   "holder",
			Premium:        decimal.RequireFromString("12.50"),
			CoverageAmount: decimal.NewFromInt(1000),
			Expiration:     s.now.Add(-time.Second),
			Status:         models.PolicyStatusActive,
			IssuedBy:       "insurer",
			CreatedAt:      s.now.Add(-time.Hour),
		}, nil)

		rr := testutil.DoRequest(s.router, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/policies/3")))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[PolicyResponse](s.T(), rr)
		s.Equal("12.5", resp.Premium)
		s.Equal("active", resp.Status)
		s.True(resp.Expired)
	})

	s.Run("rejects non-numeric ids", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policies/abc"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("maps missing policies to 404", func() {
		s.service.EXPECT().GetPolicy(gomock.Any(), domain.PolicyID(99)).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "policy not found"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/policies/99"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func TestPayPremium(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	router := chi.NewRouter()
	New(service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router)

	testutil.Given(t, "a holder paying the exact premium", func(t *testing.T) {
		service.EXPECT().
			PayPremium(gomock.Any(), domain.Principal("holder"), domain.PolicyID(1), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ domain.Principal, _ domain.PolicyID, amount decimal.Decimal) error {
				assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))
				return nil
			})

		testutil.Then(t, "the response is empty", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/policies/1/premiums", map[string]string{"amount": "12.50"})
			rr := testutil.DoRequest(router, testutil.WithPrincipal(req, "holder"))
			testutil.AssertStatus(t, rr, http.StatusNoContent)
			assert.Empty(t, rr.Body.String())
		})
	})

	testutil.Given(t, "an amount that differs from the premium", func(t *testing.T) {
		service.EXPECT().
			PayPremium(gomock.Any(), domain.Principal("holder"), domain.PolicyID(1), gomock.Any()).
			Return(dErrors.New(dErrors.CodeAmountMismatch, "amount must equal the premium"))

		testutil.When(t, "the premium is posted", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/policies/1/premiums", map[string]string{"amount": "1"})
			rr := testutil.DoRequest(router, testutil.WithPrincipal(req, "holder"))

			testutil.Then(t, "the request is unprocessable", func(t *testing.T) {
				body := testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "amount_mismatch")
				assert.Equal(t, "amount must equal the premium", body.ErrorDescription)
			})
		})
	})

	testutil.Given(t, "an amount in exponent notation", func(t *testing.T) {
		testutil.Then(t, "validation fails without calling the service", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/policies/1/premiums", map[string]string{"amount": "1e2000000000"})
			rr := testutil.DoRequest(router, testutil.WithPrincipal(req, "holder"))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})
	})

	testutil.Given(t, "a missing amount", func(t *testing.T) {
		testutil.Then(t, "validation fails without calling the service", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/policies/1/premiums", map[string]string{})
			rr := testutil.DoRequest(router, testutil.WithPrincipal(req, "holder"))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})
	})
}

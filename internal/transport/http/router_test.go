package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	authzhandler "insurely/internal/authz/handler"
	authzservice "insurely/internal/authz/service"
	authzstore "insurely/internal/authz/store"
	claimhandler "insurely/internal/claim/handler"
	claimservice "insurely/internal/claim/service"
	claimstore "insurely/internal/claim/store"
	"insurely/internal/events"
	jwttoken "insurely/internal/jwt_token"
	"insurely/internal/payout"
	"insurely/internal/payout/adapters/treasury"
	payouthandler "insurely/internal/payout/handler"
	"insurely/internal/platform/lock"
	"insurely/internal/platform/metrics"
	policyhandler "insurely/internal/policy/handler"
	policyservice "insurely/internal/policy/service"
	policystore "insurely/internal/policy/store"
	httptransport "insurely/internal/transport/http"
	"insurely/pkg/domain"
	"insurely/pkg/platform/tx"
)

const admin domain.Principal = "admin"

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	tokens   *jwttoken.JWTService
	treasury *treasury.Simulated
	recorder *events.Recorder
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s.recorder = events.NewRecorder()
	emitter := events.NewEmitter([]events.Sink{s.recorder}, events.WithLogger(logger))
	s.treasury = treasury.NewSimulated()
	s.tokens = jwttoken.NewJWTService("test-key", "insurely", "insurely-api")

	registry := authzservice.New(authzstore.NewInMemory(), authzservice.WithEvents(emitter))
	s.Require().NoError(registry.Bootstrap(context.Background(), admin))

	locker := lock.NewKeyedMutex()
	runner := tx.NewLocalRunner(time.Second)
	claims := claimstore.NewInMemory()
	policies := policyservice.New(policystore.NewInMemory(), runner, registry, locker,
		policyservice.WithEvents(emitter), policyservice.WithMetrics(m))
	claimSvc := claimservice.New(claims, policies, runner, registry, locker,
		claimservice.WithEvents(emitter), claimservice.WithMetrics(m))
	coordinator := payout.New(claims, s.treasury, registry, locker,
		payout.WithEvents(emitter), payout.WithMetrics(m))

	s.router = httptransport.NewRouter(httptransport.Deps{
		Logger:      logger,
		Metrics:     m,
		Gatherer:    reg,
		Validator:   s.tokens.Validator(),
		TokenIssuer: s.tokens,
		Handlers: []httptransport.Registrar{
			authzhandler.New(registry, logger),
			policyhandler.New(policies, logger),
			claimhandler.New(claimSvc, logger),
			payouthandler.New(coordinator, logger),
		},
	})
}

func (s *RouterSuite) token(p domain.Principal) string {
	tok, err := s.tokens.GenerateAccessToken(p, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) do(method, path string, caller domain.Principal, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(caller))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *RouterSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body map[string]string
	s.decode(rec, &body)
	return body["error"]
}

func (s *RouterSuite) grantInsurer(p domain.Principal) {
	rec := s.do(http.MethodPost, "/admin/insurers", admin, map[string]string{"principal": string(p)})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *RouterSuite) issuePolicy(by, holder domain.Principal, premium string, durationSeconds int64) int64 {
	rec := s.do(http.MethodPost, "/policies", by, map[string]any{
		"policyholder":     holder,
		"premium":          premium,
		"coverage_amount":  "1000",
		"duration_seconds": durationSeconds,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		PolicyID int64 `json:"policy_id"`
	}
	s.decode(rec, &resp)
	return resp.PolicyID
}

func (s *RouterSuite) submitClaim(by domain.Principal, policyID int64, amount string) int64 {
	rec := s.do(http.MethodPost, fmt.Sprintf("/policies/%d/claims", policyID), by, map[string]string{
		"amount": amount,
		"reason": "burst pipe",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ClaimID int64 `json:"claim_id"`
	}
	s.decode(rec, &resp)
	return resp.ClaimID
}

func (s *RouterSuite) TestClaimLifecycle() {
	s.grantInsurer("acme")
	policyID := s.issuePolicy("acme", "alice", "100", 3600)
	s.Equal(int64(1), policyID)

	s.Run("premium payment", func() {
		rec := s.do(http.MethodPost, fmt.Sprintf("/policies/%d/premiums", policyID), "alice", map[string]string{"amount": "100.00"})
		s.Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodPost, fmt.Sprintf("/policies/%d/premiums", policyID), "alice", map[string]string{"amount": "99"})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("amount_mismatch", s.errorCode(rec))

		rec = s.do(http.MethodPost, fmt.Sprintf("/policies/%d/premiums", policyID), "bob", map[string]string{"amount": "100"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	claimID := s.submitClaim("alice", policyID, "500")
	s.Equal(int64(1), claimID)
	claimPath := fmt.Sprintf("/claims/%d", claimID)

	s.Run("payout before approval is refused", func() {
		rec := s.do(http.MethodPost, claimPath+"/pay", "acme", nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("invalid_state", s.errorCode(rec))
	})

	s.Run("approve then pay", func() {
		rec := s.do(http.MethodPost, claimPath+"/approve", "acme", nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(http.MethodPost, claimPath+"/pay", "acme", nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var claim claimhandler.ClaimResponse
		s.decode(rec, &claim)
		s.Equal("paid_out", claim.Status)
		s.NotEmpty(claim.TransferRef)
		s.Equal("500", claim.Amount)
	})

	s.Run("second payout is already paid", func() {
		rec := s.do(http.MethodPost, claimPath+"/pay", "acme", nil)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("already_paid", s.errorCode(rec))
		s.Len(s.treasury.Transfers(), 1)
	})

	s.Run("queries reflect the paid claim", func() {
		rec := s.do(http.MethodGet, claimPath, "alice", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var claim claimhandler.ClaimResponse
		s.decode(rec, &claim)
		s.Equal("paid_out", claim.Status)

		rec = s.do(http.MethodGet, fmt.Sprintf("/policies/%d/claims", policyID), "alice", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list claimhandler.ClaimListResponse
		s.decode(rec, &list)
		s.Len(list.Claims, 1)
	})

	s.Len(s.recorder.OfKind(events.KindClaimPaid), 1)
	s.Len(s.recorder.OfKind(events.KindPremiumPaid), 1)
}

func (s *RouterSuite) TestFailedTransferIsRetryable() {
	s.grantInsurer("acme")
	policyID := s.issuePolicy("acme", "alice", "100", 3600)
	claimPath := fmt.Sprintf("/claims/%d", s.submitClaim("alice", policyID, "250"))
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, claimPath+"/approve", "acme", nil).Code)

	s.treasury.FailNext(1)
	rec := s.do(http.MethodPost, claimPath+"/pay", "acme", nil)
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Equal("transfer_failed", s.errorCode(rec))

	rec = s.do(http.MethodGet, claimPath, "acme", nil)
	var claim claimhandler.ClaimResponse
	s.decode(rec, &claim)
	s.Equal("payment_failed", claim.Status)

	rec = s.do(http.MethodPost, claimPath+"/pay", "acme", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &claim)
	s.Equal("paid_out", claim.Status)
	s.Equal(2, claim.PayoutAttempts)
}

func (s *RouterSuite) TestAccessControl() {
	s.Run("missing token", func() {
		rec := s.do(http.MethodGet, "/policies/1", "", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("only the administrator grants insurers", func() {
		rec := s.do(http.MethodPost, "/admin/insurers", "mallory", map[string]string{"principal": "mallory"})
		s.Equal(http.StatusUnauthorized, rec.Code)

		rec = s.do(http.MethodGet, "/insurers/mallory", "mallory", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var status authzhandler.InsurerStatusResponse
		s.decode(rec, &status)
		s.False(status.IsInsurer)
	})

	s.Run("re-granting reports no change", func() {
		s.grantInsurer("acme")
		rec := s.do(http.MethodPost, "/admin/insurers", admin, map[string]string{"principal": "acme"})
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp authzhandler.GrantInsurerResponse
		s.decode(rec, &resp)
		s.False(resp.Granted)
		s.Len(s.recorder.OfKind(events.KindInsurerGranted), 1)
	})

	s.Run("non insurers cannot issue", func() {
		rec := s.do(http.MethodPost, "/policies", "alice", map[string]any{
			"policyholder":     "alice",
			"premium":          "100",
			"coverage_amount":  "1000",
			"duration_seconds": 60,
		})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("holder cannot approve their own claim", func() {
		policyID := s.issuePolicy("acme", "alice", "100", 3600)
		claimID := s.submitClaim("alice", policyID, "10")
		rec := s.do(http.MethodPost, fmt.Sprintf("/claims/%d/approve", claimID), "alice", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *RouterSuite) TestRequestValidation() {
	s.grantInsurer("acme")

	s.Run("malformed amount", func() {
		rec := s.do(http.MethodPost, "/policies", "acme", map[string]any{
			"policyholder":     "alice",
			"premium":          "ten",
			"coverage_amount":  "1000",
			"duration_seconds": 60,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.errorCode(rec))
	})

	s.Run("non positive premium", func() {
		rec := s.do(http.MethodPost, "/policies", "acme", map[string]any{
			"policyholder":     "alice",
			"premium":          "0",
			"coverage_amount":  "1000",
			"duration_seconds": 60,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", s.errorCode(rec))
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, "/admin/insurers", admin, map[string]string{"principal": "x", "role": "admin"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad path id", func() {
		rec := s.do(http.MethodGet, "/claims/abc", "acme", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown policy", func() {
		rec := s.do(http.MethodGet, "/policies/99", "acme", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("claim against an expired policy", func() {
		policyID := s.issuePolicy("acme", "alice", "100", -1)
		rec := s.do(http.MethodPost, fmt.Sprintf("/policies/%d/claims", policyID), "alice", map[string]string{
			"amount": "10",
			"reason": "late",
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("expired", s.errorCode(rec))
	})
}

func (s *RouterSuite) TestOperationalEndpoints() {
	s.Run("health", func() {
		rec := s.do(http.MethodGet, "/healthz", "", nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("dev tokens authenticate", func() {
		rec := s.do(http.MethodPost, "/dev/tokens", "", map[string]string{"principal": "carol"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			AccessToken string `json:"access_token"`
		}
		s.decode(rec, &resp)

		claims, err := s.tokens.ValidateToken(resp.AccessToken)
		s.Require().NoError(err)
		s.Equal("carol", claims.Subject)
	})

	s.Run("metrics are exposed by route", func() {
		s.do(http.MethodGet, "/policies/1", "acme", nil)
		rec := s.do(http.MethodGet, "/metrics", "", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.True(strings.Contains(rec.Body.String(), `route="GET /policies/{policyID}"`))
	})
}

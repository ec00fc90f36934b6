package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"insurely/pkg/domain"
	dErrors "insurely/pkg/domain-errors"
	"insurely/pkg/platform/httputil"
	"insurely/pkg/requestcontext"
)

const (
	defaultTokenTTL = time.Hour
	maxTokenTTL     = 24 * time.Hour
)

// TokenIssuer mints bearer tokens for a principal.
type TokenIssuer interface {
	GenerateAccessToken(principal domain.Principal, expiresIn time.Duration) (string, error)
}

type devTokenRequest struct {
	Principal        string `json:"principal"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`

	parsed domain.Principal
	ttl    time.Duration
}

func (r *devTokenRequest) Validate() error {
	p, err := domain.ParsePrincipal(r.Principal)
	if err != nil {
		return err
	}
	r.parsed = p
	r.ttl = defaultTokenTTL
	if r.ExpiresInSeconds != 0 {
		if r.ExpiresInSeconds < 0 || r.ExpiresInSeconds > int64(maxTokenTTL/time.Second) {
			return dErrors.New(dErrors.CodeValidation, "expires_in_seconds is out of range")
		}
		r.ttl = time.Duration(r.ExpiresInSeconds) * time.Second
	}
	return nil
}

type devTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// devTokenHandler serves POST /dev/tokens. It exists for local runs where no
// identity provider issues tokens.
func devTokenHandler(issuer TokenIssuer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		req, ok := httputil.DecodeAndPrepare[devTokenRequest](w, r, logger, ctx, requestID)
		if !ok {
			return
		}

		token, err := issuer.GenerateAccessToken(req.parsed, req.ttl)
		if err != nil {
			logger.ErrorContext(ctx, "failed to mint dev token",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint token"))
			return
		}

		logger.InfoContext(ctx, "dev token minted",
			"request_id", requestID,
			"principal", req.parsed,
		)
		httputil.WriteJSON(w, http.StatusOK, &devTokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(req.ttl / time.Second),
		})
	}
}

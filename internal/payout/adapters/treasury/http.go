package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"insurely/internal/payout"
	"insurely/pkg/platform/circuit"
)

const maxResponseBytes = 64 << 10

type transferRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	To             string `json:"to"`
	Amount         string `json:"amount"`
}

type transferResponse struct {
	Reference string `json:"reference"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPTreasury calls a remote treasury at POST {baseURL}/transfers. The
// idempotency key is sent both in the body and the Idempotency-Key header.
type HTTPTreasury struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*HTTPTreasury)

func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTPTreasury) {
		t.client = client
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(t *HTTPTreasury) {
		t.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTreasury) {
		t.logger = logger
	}
}

func NewHTTP(baseURL string, timeout time.Duration, opts ...Option) *HTTPTreasury {
	t := &HTTPTreasury{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		breaker: circuit.New("treasury", circuit.WithCooldown(30*time.Second)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTreasury) Transfer(ctx context.Context, req payout.TransferRequest) (payout.TransferReceipt, error) {
	if !t.breaker.Allow() {
		return payout.TransferReceipt{}, &TransferError{
			Category:   ErrorUnavailable,
			Message:    "not attempted",
			Underlying: ErrCircuitOpen,
		}
	}

	receipt, err := t.do(ctx, req)
	if err != nil {
		var te *TransferError
		if errors.As(err, &te) && te.Category == ErrorRejected {
			// The treasury answered; it is healthy even if it refused.
			t.recordSuccess()
		} else {
			t.recordFailure(ctx)
		}
		return payout.TransferReceipt{}, err
	}
	t.recordSuccess()
	return receipt, nil
}

func (t *HTTPTreasury) do(ctx context.Context, req payout.TransferRequest) (payout.TransferReceipt, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	body, err := json.Marshal(transferRequest{
		IdempotencyKey: req.IdempotencyKey,
		To:             req.To.String(),
		Amount:         req.Amount.String(),
	})
	if err != nil {
		return payout.TransferReceipt{}, fmt.Errorf("encode transfer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return payout.TransferReceipt{}, fmt.Errorf("build transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return payout.TransferReceipt{}, &TransferError{Category: ErrorTimeout, Message: "transfer timed out", Underlying: err}
		}
		return payout.TransferReceipt{}, &TransferError{Category: ErrorUnavailable, Message: "transfer request failed", Underlying: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return payout.TransferReceipt{}, &TransferError{Category: ErrorUnavailable, StatusCode: resp.StatusCode, Message: "read response", Underlying: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out transferResponse
		if err := json.Unmarshal(raw, &out); err != nil || out.Reference == "" {
			return payout.TransferReceipt{}, &TransferError{
				Category:   ErrorBadResponse,
				StatusCode: resp.StatusCode,
				Message:    "response carries no transfer reference",
				Underlying: err,
			}
		}
		return payout.TransferReceipt{Reference: out.Reference}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return payout.TransferReceipt{}, &TransferError{
			Category:   ErrorUnavailable,
			StatusCode: resp.StatusCode,
			Message:    describe(raw, resp.Status),
		}
	default:
		return payout.TransferReceipt{}, &TransferError{
			Category:   ErrorRejected,
			StatusCode: resp.StatusCode,
			Message:    describe(raw, resp.Status),
		}
	}
}

func describe(raw []byte, status string) string {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return status
}

func (t *HTTPTreasury) recordFailure(ctx context.Context) {
	if _, change := t.breaker.RecordFailure(); change.Opened {
		t.logger.WarnContext(ctx, "treasury circuit opened", "breaker", t.breaker.Name())
	}
}

func (t *HTTPTreasury) recordSuccess() {
	if _, change := t.breaker.RecordSuccess(); change.Closed {
		t.logger.Info("treasury circuit closed", "breaker", t.breaker.Name())
	}
}

package treasury

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurely/internal/payout"
	"insurely/pkg/platform/circuit"
)

func transferReq() payout.TransferRequest {
	return payout.TransferRequest{
		IdempotencyKey: "claim-7",
		To:             "alice",
		Amount:         decimal.RequireFromString("250.50"),
	}
}

func TestHTTPTreasury_Transfer(t *testing.T) {
	t.Run("posts the transfer and returns the reference", func(t *testing.T) {
		var got transferRequest
		var header string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/transfers", r.URL.Path)
			header = r.Header.Get("Idempotency-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"reference":"tx-123"}`))
		}))
		defer srv.Close()

		receipt, err := NewHTTP(srv.URL+"/", time.Second).Transfer(context.Background(), transferReq())
		require.NoError(t, err)
		assert.Equal(t, "tx-123", receipt.Reference)
		assert.Equal(t, "claim-7", header)
		assert.Equal(t, transferRequest{IdempotencyKey: "claim-7", To: "alice", Amount: "250.5"}, got)
	})

	t.Run("missing reference is a bad response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second).Transfer(context.Background(), transferReq())
		var te *TransferError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ErrorBadResponse, te.Category)
		assert.True(t, IsRetryable(err))
	})

	t.Run("client errors are rejections", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"insufficient funds"}`))
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second).Transfer(context.Background(), transferReq())
		var te *TransferError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ErrorRejected, te.Category)
		assert.Equal(t, http.StatusUnprocessableEntity, te.StatusCode)
		assert.Equal(t, "insufficient funds", te.Message)
		assert.False(t, IsRetryable(err))
	})

	t.Run("server errors are unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTP(srv.URL, time.Second).Transfer(context.Background(), transferReq())
		var te *TransferError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ErrorUnavailable, te.Category)
		assert.Equal(t, "502 Bad Gateway", te.Message)
	})

	t.Run("slow treasury times out", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewHTTP(srv.URL, 20*time.Millisecond).Transfer(context.Background(), transferReq())
		var te *TransferError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ErrorTimeout, te.Category)
	})
}

func TestHTTPTreasury_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := circuit.New("treasury-test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	client := NewHTTP(srv.URL, time.Second, WithBreaker(breaker))

	for range 2 {
		_, err := client.Transfer(context.Background(), transferReq())
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err := client.Transfer(context.Background(), transferReq())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the treasury")
}

func TestHTTPTreasury_RejectionsKeepCircuitClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	breaker := circuit.New("treasury-test", circuit.WithFailureThreshold(1))
	client := NewHTTP(srv.URL, time.Second, WithBreaker(breaker))

	_, err := client.Transfer(context.Background(), transferReq())
	require.Error(t, err)
	assert.False(t, breaker.IsOpen())
}

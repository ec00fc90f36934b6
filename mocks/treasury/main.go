// Command treasury-mock serves the treasury transfer API for local runs and
// end-to-end tests.
//
//	POST /transfers  {"idempotency_key","to","amount"} -> 201 {"reference"}
//
// Replaying a key returns the original reference with 200. Replaying a key
// with a different payload is a 409.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type transfer struct {
	IdempotencyKey string `json:"idempotency_key"`
	To             string `json:"to"`
	Amount         string `json:"amount"`
}

type settled struct {
	transfer
	Reference string
}

type server struct {
	mu       sync.Mutex
	ledger   map[string]settled
	failRate int // percent of first attempts answered with 503
	latency  time.Duration
	logger   *slog.Logger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	s := &server{
		ledger:   make(map[string]settled),
		failRate: envInt("TREASURY_FAIL_PERCENT", 0),
		latency:  time.Duration(envInt("TREASURY_LATENCY_MS", 0)) * time.Millisecond,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transfers", s.handleTransfer)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := os.Getenv("TREASURY_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	logger.Info("treasury mock listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("treasury mock stopped", "error", err)
		os.Exit(1)
	}
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transfer
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.IdempotencyKey == "" || req.To == "" || req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotency_key, to and amount are required"})
		return
	}
	if h := r.Header.Get("Idempotency-Key"); h != "" && h != req.IdempotencyKey {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotency key header mismatch"})
		return
	}

	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.ledger[req.IdempotencyKey]; ok {
		if prior.transfer != req {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "idempotency key reused with a different transfer"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reference": prior.Reference})
		return
	}
	if s.failRate > 0 && roll() < s.failRate {
		s.logger.Info("injected failure", "idempotency_key", req.IdempotencyKey)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "treasury unavailable"})
		return
	}

	ref := "trf_" + randomHex(8)
	s.ledger[req.IdempotencyKey] = settled{transfer: req, Reference: ref}
	s.logger.Info("transfer settled",
		"idempotency_key", req.IdempotencyKey,
		"to", req.To,
		"amount", req.Amount,
		"reference", ref,
	)
	writeJSON(w, http.StatusCreated, map[string]string{"reference": ref})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func roll() int {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return 100
	}
	return int(n.Int64())
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

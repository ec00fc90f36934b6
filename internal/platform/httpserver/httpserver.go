// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

const writeMargin = 15 * time.Second

// New builds an HTTP server for handler. The write timeout is derived from the
// slowest downstream call a handler makes so payout responses are delivered
// after the treasury answers.
func New(addr string, handler http.Handler, slowestCall time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      slowestCall + writeMargin,
		IdleTimeout:       120 * time.Second,
	}
}

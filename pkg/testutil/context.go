package testutil

import (
	"net/http"
	"time"

	"insurely/pkg/domain"
	"insurely/pkg/requestcontext"
)

// WithPrincipal sets the caller the way the auth middleware would. Invalid
// principals leave the request anonymous.
func WithPrincipal(req *http.Request, principal string) *http.Request {
	p, err := domain.ParsePrincipal(principal)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. Collectors are registered
// on the registerer passed to New so tests can use isolated registries.
type Metrics struct {
	PoliciesIssued   prometheus.Counter
	PremiumsPaid     prometheus.Counter
	ClaimsSubmitted  prometheus.Counter
	ClaimDecisions   *prometheus.CounterVec
	Payouts          *prometheus.CounterVec
	PayoutDuration   prometheus.Histogram
	EventSinkErrors  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	InsurersGranted  prometheus.Counter
	HTTPRequestTotal *prometheus.CounterVec
	HTTPLatency      *prometheus.HistogramVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PoliciesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "insurely_policies_issued_total",
			Help: "Total number of policies issued",
		}),
		PremiumsPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "insurely_premiums_paid_total",
			Help: "Total number of accepted premium payments",
		}),
		ClaimsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "insurely_claims_submitted_total",
			Help: "Total number of claims submitted",
		}),
		ClaimDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insurely_claim_decisions_total",
			Help: "Claim adjudication outcomes",
		}, []string{"decision"}),
		Payouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insurely_payouts_total",
			Help: "Payout attempts by outcome",
		}, []string{"outcome"}),
		PayoutDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "insurely_payout_duration_seconds",
			Help:    "Duration of the payout protocol including the treasury call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		EventSinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insurely_event_sink_errors_total",
			Help: "Lifecycle events a sink failed to accept",
		}, []string{"sink"}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "insurely_events_dropped_total",
			Help: "Lifecycle events dropped because an async sink buffer was full",
		}),
		InsurersGranted: f.NewCounter(prometheus.CounterOpts{
			Name: "insurely_insurers_granted_total",
			Help: "Principals newly granted the insurer role",
		}),
		HTTPRequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insurely_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insurely_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

// The helpers below tolerate a nil receiver so services can run without metrics.

func (m *Metrics) IncrementPoliciesIssued() {
	if m != nil {
		m.PoliciesIssued.Inc()
	}
}

func (m *Metrics) IncrementPremiumsPaid() {
	if m != nil {
		m.PremiumsPaid.Inc()
	}
}

func (m *Metrics) IncrementClaimsSubmitted() {
	if m != nil {
		m.ClaimsSubmitted.Inc()
	}
}

func (m *Metrics) IncrementClaimDecision(decision string) {
	if m != nil {
		m.ClaimDecisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncrementInsurersGranted() {
	if m != nil {
		m.InsurersGranted.Inc()
	}
}

// ObservePayout records one payout attempt. Call with time.Now() at the start.
func (m *Metrics) ObservePayout(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Payouts.WithLabelValues(outcome).Inc()
	m.PayoutDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEventSinkError(sink string) {
	if m != nil {
		m.EventSinkErrors.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementEventsDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) ObserveHTTP(route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

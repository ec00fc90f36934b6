package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"insurely/internal/platform/metrics"
	"insurely/pkg/requestcontext"
)

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event Event) error
}

// Emitter fans every event out to all configured sinks. A nil *Emitter drops
// events, which keeps wiring optional in tests.
type Emitter struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Emitter) {
		e.metrics = m
	}
}

func NewEmitter(sinks []Sink, opts ...Option) *Emitter {
	e := &Emitter{sinks: sinks, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit wraps payload in an envelope stamped with the request time and ID.
func (e *Emitter) Emit(ctx context.Context, payload Payload) {
	if e == nil {
		return
	}
	event := Event{
		ID:           uuid.New(),
		Kind:         payload.Kind(),
		AggregateKey: payload.AggregateKey(),
		OccurredAt:   requestcontext.Now(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		Payload:      payload,
	}
	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			e.logger.WarnContext(ctx, "event sink publish failed",
				"sink", sink.Name(),
				"kind", string(event.Kind),
				"event_id", event.ID.String(),
				"error", err,
				"request_id", event.RequestID,
			)
			e.metrics.IncrementEventSinkError(sink.Name())
		}
	}
}

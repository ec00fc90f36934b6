package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"insurely/internal/platform/metrics"
)

const flushTimeout = 5 * time.Second

// ErrBufferFull is returned by AsyncSink when the queue cannot take more events.
var ErrBufferFull = errors.New("event buffer full")

// AsyncSink queues events for a Worker so slow sinks (Kafka) stay off the
// request path. When the buffer is full the event is dropped and counted.
type AsyncSink struct {
	inner   Sink
	queue   chan Event
	metrics *metrics.Metrics
}

func NewAsyncSink(inner Sink, size int, m *metrics.Metrics) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	return &AsyncSink{inner: inner, queue: make(chan Event, size), metrics: m}
}

func (s *AsyncSink) Name() string { return "async:" + s.inner.Name() }

func (s *AsyncSink) Publish(_ context.Context, event Event) error {
	select {
	case s.queue <- event:
		return nil
	default:
		s.metrics.IncrementEventsDropped()
		return ErrBufferFull
	}
}

// Worker returns the consumer draining this sink's queue.
func (s *AsyncSink) Worker(logger *slog.Logger) *Worker {
	return NewWorker(s.inner, s.queue, logger, s.metrics)
}

// Worker consumes queued events and forwards them to a sink. Forwarding errors
// are logged; the worker keeps running.
type Worker struct {
	sink    Sink
	inbox   <-chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger, metrics: m}
}

// Run forwards events until ctx is done, then flushes what is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			w.drain(flushCtx)
			cancel()
			return ctx.Err()
		case event := <-w.inbox:
			w.forward(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.inbox:
			w.forward(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) forward(ctx context.Context, event Event) {
	if err := w.sink.Publish(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "event delivery failed",
			"sink", w.sink.Name(),
			"kind", string(event.Kind),
			"event_id", event.ID.String(),
			"error", err,
		)
		w.metrics.IncrementEventSinkError(w.sink.Name())
	}
}

package dispatch

import (
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/metrics"
)

// Option customises the dispatcher.
type Option func(*Dispatcher)

// WithBackoff overrides the retry pacing.
func WithBackoff(backoff Backoff) Option {
	return func(d *Dispatcher) { d.backoff = backoff }
}

// WithBreaker attaches a per-endpoint circuit breaker.
func WithBreaker(breaker *Breaker) Option {
	return func(d *Dispatcher) { d.breaker = breaker }
}

// WithFanout bounds concurrent batch dispatches.
func WithFanout(fanout int) Option {
	return func(d *Dispatcher) {
		if fanout > 0 {
			d.fanout = fanout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics attaches the counter tracker.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

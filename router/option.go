package router

import (
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/metrics"
)

// Option customises the router.
type Option func(*Router)

// WithDefaults sets the timeout and retry budget used when an activity does
// not declare its own.
func WithDefaults(defaults Defaults) Option {
	return func(r *Router) {
		if defaults.Timeout > 0 {
			r.defaults.Timeout = defaults.Timeout
		}
		if defaults.Retries >= 0 {
			r.defaults.Retries = defaults.Retries
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches the counter tracker.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

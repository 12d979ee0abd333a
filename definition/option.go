package definition

import (
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/metrics"
)

// Option customises the definition service.
type Option func(*Service)

// WithTTL overrides the catalog cache TTL. A non-positive value disables
// expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches the counter tracker.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

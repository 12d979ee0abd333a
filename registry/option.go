package registry

import (
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/metrics"
)

// Option customises the registry service.
type Option func(*Service)

// WithDiscovery attaches an endpoint discovery source consulted when the
// override map has no healthy endpoint.
func WithDiscovery(discovery Discovery) Option {
	return func(s *Service) { s.discovery = discovery }
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

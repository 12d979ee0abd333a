package taskgrid

import (
	"github.com/viant/afs/storage"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/taskgrid/taskgrid/analysis"
	"github.com/taskgrid/taskgrid/dispatch"
	"github.com/taskgrid/taskgrid/engine"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/policy"
	"github.com/taskgrid/taskgrid/registry"
	"github.com/taskgrid/taskgrid/tracing"
)

// Option customises the Service during New.
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithEngineAdapter sets the process engine adapter the runtime polls and
// reports to. The adapter also serves raw definition documents.
func WithEngineAdapter(adapter engine.Adapter) Option {
	return func(s *Service) { s.adapter = adapter }
}

// WithDiscovery sets the dynamic endpoint discovery backend consulted when
// the registry override map has no match.
func WithDiscovery(discovery registry.Discovery) Option {
	return func(s *Service) { s.discovery = discovery }
}

// WithRegistry sets a pre-built endpoint registry.
func WithRegistry(service *registry.Service) Option {
	return func(s *Service) { s.registry = service }
}

// WithAnalysisStore sets the analysis record store; the default keeps records
// in memory.
func WithAnalysisStore(store analysis.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRecorderIndex attaches a secondary index; a background processor then
// promotes pending records into it.
func WithRecorderIndex(index analysis.Index) Option {
	return func(s *Service) { s.index = index }
}

// WithMetrics sets the counter tracker shared by every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTransportOptions appends transport options, e.g. a credential provider
// via dispatch.WithAuthProvider.
func WithTransportOptions(options ...dispatch.TransportOption) Option {
	return func(s *Service) {
		s.transportOptions = append(s.transportOptions, options...)
	}
}

// WithPolicy sets the dispatch policy applied to every runtime context.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithAssetFsOptions supplies file system options for catalog and config
// loading, e.g. an embed.FS.
func WithAssetFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.assetFsOptions = options }
}

// WithAssetBaseURL sets the base URL catalog and config URIs are resolved
// against.
func WithAssetBaseURL(url string) Option {
	return func(s *Service) { s.assetBaseURL = url }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The function is safe to call multiple times – the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter. This enables integrations with exporters other than the
// built-in stdout exporter, for example OTLP, Jaeger or Zipkin. The function
// is safe to call multiple times – the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

package taskgrid

import (
	"context"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/analysis"
	amemory "github.com/taskgrid/taskgrid/analysis/memory"
	"github.com/taskgrid/taskgrid/asset"
	"github.com/taskgrid/taskgrid/definition"
	"github.com/taskgrid/taskgrid/dispatch"
	"github.com/taskgrid/taskgrid/engine"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/policy"
	"github.com/taskgrid/taskgrid/registry"
	"github.com/taskgrid/taskgrid/router"
)

// Service assembles the orchestration core: endpoint registry, definition
// cache, task router, dispatcher and analysis recorder, wired the same way
// for every embedding.
type Service struct {
	config           *Config
	logger           *zap.Logger
	metrics          *metrics.Metrics
	adapter          engine.Adapter
	discovery        registry.Discovery
	registry         *registry.Service
	assets           *asset.Service
	assetBaseURL     string
	assetFsOptions   []storage.Option
	definitions      *definition.Service
	router           *router.Router
	transport        *dispatch.Transport
	transportOptions []dispatch.TransportOption
	dispatcher       *dispatch.Dispatcher
	store            analysis.Store
	recorder         *analysis.Recorder
	index            analysis.Index
	processor        *analysis.Processor
	policy           *policy.Policy
	runtime          *Runtime
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()

	s.definitions = definition.New(s.adapter,
		definition.WithTTL(s.config.Definition.TTL()),
		definition.WithLogger(s.logger),
		definition.WithMetrics(s.metrics))

	s.router = router.New(s.definitions, s.registry,
		router.WithDefaults(router.Defaults{
			Timeout: s.config.Defaults.Timeout(),
			Retries: s.config.Defaults.RetryCount,
		}),
		router.WithLogger(s.logger),
		router.WithMetrics(s.metrics))

	transportOptions := append([]dispatch.TransportOption{
		dispatch.WithTransportConfig(s.config.Transport),
	}, s.transportOptions...)
	s.transport = dispatch.NewTransport(transportOptions...)

	// breaker transitions feed the registry health flags so routing prefers
	// endpoints whose circuit is closed
	breaker := dispatch.NewBreaker(s.config.Breaker, func(baseURL string, state dispatch.BreakerState) {
		switch state {
		case dispatch.BreakerOpen:
			s.registry.MarkUnhealthy(baseURL)
		case dispatch.BreakerClosed:
			s.registry.MarkHealthy(baseURL)
		}
	})
	s.dispatcher = dispatch.New(s.transport,
		dispatch.WithBreaker(breaker),
		dispatch.WithBackoff(s.config.Backoff),
		dispatch.WithFanout(s.config.Workers.Concurrency),
		dispatch.WithLogger(s.logger),
		dispatch.WithMetrics(s.metrics))

	s.recorder = analysis.NewRecorder(s.store,
		analysis.WithQueueSize(s.config.Recorder.QueueSize),
		analysis.WithWorkers(s.config.Recorder.Workers),
		analysis.WithLogger(s.logger),
		analysis.WithMetrics(s.metrics))

	if s.index != nil {
		processorConfig := analysis.DefaultProcessorConfig()
		if s.config.Recorder.ProcessorIntervalMs > 0 {
			processorConfig.PollInterval = time.Duration(s.config.Recorder.ProcessorIntervalMs) * time.Millisecond
		}
		s.processor = analysis.NewProcessor(s.store, s.index, processorConfig, s.logger)
	}

	s.runtime = &Runtime{service: s}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.assets == nil {
		s.assets = asset.New(afs.New(), s.assetBaseURL, s.assetFsOptions...)
	}
	if s.registry == nil {
		s.registry = registry.New(
			registry.WithDiscovery(s.discovery),
			registry.WithLogger(s.logger),
			registry.WithMetrics(s.metrics))
	}
	if s.store == nil {
		s.store = amemory.New()
	}
}

// Runtime returns the runtime facade driving worker loops and dispatch.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Registry returns the endpoint registry for programmatic registration.
func (s *Service) Registry() *registry.Service {
	return s.registry
}

// Definitions returns the definition cache service.
func (s *Service) Definitions() *definition.Service {
	return s.definitions
}

// Router returns the task router.
func (s *Service) Router() *router.Router {
	return s.router
}

// Dispatcher returns the dispatcher.
func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Recorder returns the analysis recorder.
func (s *Service) Recorder() *analysis.Recorder {
	return s.recorder
}

// AnalysisStore returns the record store backing the recorder, the query
// surface for audit and replay.
func (s *Service) AnalysisStore() analysis.Store {
	return s.store
}

// Metrics returns the counter tracker.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// NewContext derives a context carrying the service dispatch policy.
func (s *Service) NewContext(ctx context.Context) context.Context {
	if s.policy == nil {
		return ctx
	}
	return policy.WithPolicy(ctx, s.policy)
}

// LoadEndpoints reads a static endpoint catalog document and registers every
// entry; calling it again hot-reloads the catalog (last-write-wins upsert).
func (s *Service) LoadEndpoints(ctx context.Context, URI string) error {
	return s.registry.LoadStatic(ctx, s.assets, URI)
}

// New creates the orchestration core. An engine adapter is required for the
// polling worker loops and definition fetching; a service constructed without
// one can still route pre-resolved dispatch requests.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

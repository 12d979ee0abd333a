package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/taskgrid/taskgrid"

// Registry lookup outcomes.
const (
	LookupHit      = "hit"
	LookupMiss     = "miss"
	LookupFallback = "fallback"
)

// Snapshot is a read-only copy of the aggregated counters.
type Snapshot struct {
	TasksFetched      int `json:"tasksFetched"`
	TasksRouted       int `json:"tasksRouted"`
	DispatchSucceeded int `json:"dispatchSucceeded"`
	DispatchFailed    int `json:"dispatchFailed"`
	DispatchTimedOut  int `json:"dispatchTimedOut"`
	RetryAttempts     int `json:"retryAttempts"`
	RegistryHits      int `json:"registryHits"`
	RegistryMisses    int `json:"registryMisses"`
	RegistryFallbacks int `json:"registryFallbacks"`
	CacheHits         int `json:"cacheHits"`
	CacheMisses       int `json:"cacheMisses"`
	RecordsWritten    int `json:"recordsWritten"`
	RecordsDropped    int `json:"recordsDropped"`
	TasksCompleted    int `json:"tasksCompleted"`
	CompletionErrors  int `json:"completionErrors"`
}

// Metrics keeps aggregated routing counters.  It is safe for concurrent use;
// a nil receiver is a no-op so instrumentation points never need guards.
type Metrics struct {
	mux      sync.Mutex
	snapshot Snapshot
	onChange func(Snapshot)

	fetched    metric.Int64Counter
	dispatches metric.Int64Counter
	retries    metric.Int64Counter
	lookups    metric.Int64Counter
	cache      metric.Int64Counter
	records    metric.Int64Counter
	latency    metric.Float64Histogram
}

// New builds a tracker bound to the globally installed meter provider.
func New() *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	m.fetched, _ = meter.Int64Counter("taskgrid.tasks.fetched",
		metric.WithDescription("external tasks fetched from the process engine"))
	m.dispatches, _ = meter.Int64Counter("taskgrid.dispatch.completed",
		metric.WithDescription("terminal dispatch outcomes by status"))
	m.retries, _ = meter.Int64Counter("taskgrid.dispatch.retries",
		metric.WithDescription("dispatch attempts beyond the first"))
	m.lookups, _ = meter.Int64Counter("taskgrid.registry.lookups",
		metric.WithDescription("endpoint registry lookups by outcome"))
	m.cache, _ = meter.Int64Counter("taskgrid.definition.cache",
		metric.WithDescription("definition cache accesses by outcome"))
	m.records, _ = meter.Int64Counter("taskgrid.analysis.records",
		metric.WithDescription("analysis records written or dropped"))
	m.latency, _ = meter.Float64Histogram("taskgrid.dispatch.latency",
		metric.WithDescription("dispatch latency per service"),
		metric.WithUnit("ms"))
	return m
}

// TasksFetched counts tasks handed over by the engine adapter.
func (m *Metrics) TasksFetched(ctx context.Context, count int) {
	if m == nil || count == 0 {
		return
	}
	m.update(func(s *Snapshot) { s.TasksFetched += count })
	if m.fetched != nil {
		m.fetched.Add(ctx, int64(count))
	}
}

// TaskRouted counts a successful routing decision.
func (m *Metrics) TaskRouted(ctx context.Context) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) { s.TasksRouted++ })
}

// RegistryLookup counts one lookup with the supplied outcome.
func (m *Metrics) RegistryLookup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) {
		switch outcome {
		case LookupHit:
			s.RegistryHits++
		case LookupFallback:
			s.RegistryFallbacks++
		default:
			s.RegistryMisses++
		}
	})
	if m.lookups != nil {
		m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// CacheAccess counts one definition cache access.
func (m *Metrics) CacheAccess(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	outcome := LookupMiss
	if hit {
		outcome = LookupHit
	}
	m.update(func(s *Snapshot) {
		if hit {
			s.CacheHits++
		} else {
			s.CacheMisses++
		}
	})
	if m.cache != nil {
		m.cache.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RetryScheduled counts one retry attempt against the supplied service type.
func (m *Metrics) RetryScheduled(ctx context.Context, serviceType string) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) { s.RetryAttempts++ })
	if m.retries != nil {
		m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("serviceType", serviceType)))
	}
}

// DispatchCompleted counts one terminal dispatch outcome and its latency.
func (m *Metrics) DispatchCompleted(ctx context.Context, serviceType, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) {
		switch status {
		case "success":
			s.DispatchSucceeded++
		case "timeout":
			s.DispatchTimedOut++
		default:
			s.DispatchFailed++
		}
	})
	attrs := metric.WithAttributes(
		attribute.String("serviceType", serviceType),
		attribute.String("status", status),
	)
	if m.dispatches != nil {
		m.dispatches.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(latency)/float64(time.Millisecond), attrs)
	}
}

// RecordWritten counts one analysis record accepted by the recorder.
func (m *Metrics) RecordWritten(ctx context.Context) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) { s.RecordsWritten++ })
	if m.records != nil {
		m.records.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "written")))
	}
}

// RecordDropped counts one analysis record evicted under backpressure.
func (m *Metrics) RecordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) { s.RecordsDropped++ })
	if m.records != nil {
		m.records.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "dropped")))
	}
}

// CompletionReported counts one engine completion callback.
func (m *Metrics) CompletionReported(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.update(func(s *Snapshot) {
		if ok {
			s.TasksCompleted++
		} else {
			s.CompletionErrors++
		}
	})
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.snapshot
}

// OnChange registers a callback invoked with a copy of the counters after
// every update.  Passing nil disables the callback.  Only one callback can be
// active; subsequent calls overwrite the previous value.
func (m *Metrics) OnChange(cb func(Snapshot)) {
	if m == nil {
		return
	}
	m.mux.Lock()
	m.onChange = cb
	m.mux.Unlock()
}

// update applies fn under the lock and invokes the onChange callback with a
// copy outside the critical section so the callback can perform slow
// operations without blocking instrumentation points.
func (m *Metrics) update(fn func(*Snapshot)) {
	m.mux.Lock()
	fn(&m.snapshot)
	snapshot := m.snapshot
	cb := m.onChange
	m.mux.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

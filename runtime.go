package taskgrid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskgrid/taskgrid/analysis"
	"github.com/taskgrid/taskgrid/definition"
	"github.com/taskgrid/taskgrid/model"
	"github.com/taskgrid/taskgrid/policy"
	"github.com/taskgrid/taskgrid/registry"
)

// Tags stamped on analysis records when routing fails before any dispatch.
const (
	TagMetadataMissing = "metadata_missing"
	TagServiceNotFound = "service_not_found"
)

// ThreadVariable names the task variable carrying the conversation/session
// correlator propagated into analysis records.
const ThreadVariable = "threadId"

// Runtime drives the orchestration core: polling worker loops per engine
// topic plus the synchronous Dispatch/DispatchBatch entry points. Every task
// walks Received→Routed→Dispatching→terminal→Recorded; errors are isolated
// per task and never stop a worker loop.
type Runtime struct {
	service *Service

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// Start loads the static endpoint catalog when configured, launches the
// recorder workers, the optional analysis processor and one polling loop per
// configured topic. It returns immediately; loops run until Shutdown or the
// supplied context ends.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	config := r.service.config
	if err := config.Validate(); err != nil {
		return err
	}
	if len(config.Workers.Topics) > 0 && r.service.adapter == nil {
		return fmt.Errorf("engine adapter is required to poll topics %v", config.Workers.Topics)
	}
	if config.Registry.CatalogURL != "" {
		if err := r.service.LoadEndpoints(ctx, config.Registry.CatalogURL); err != nil {
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(r.service.NewContext(ctx))
	r.cancel = cancel

	// the recorder drains on Shutdown, so its workers must outlive loopCtx
	r.service.recorder.Start(context.Background())
	if r.service.processor != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			_ = r.service.processor.Start(loopCtx)
		}()
	}
	for _, topic := range config.Workers.Topics {
		r.wg.Add(1)
		go r.poll(loopCtx, topic)
	}
	r.started = true
	return nil
}

// Shutdown stops the worker loops, waits for in-flight tasks, drains the
// recorder and releases idle connections.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.started = false
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if r.service.processor != nil {
		r.service.processor.Shutdown()
	}
	r.wg.Wait()
	err := r.service.recorder.Shutdown(ctx)
	r.service.transport.CloseIdleConnections()
	return err
}

// Dispatch routes and invokes a single task, recording the terminal outcome.
// Routing failures return a typed error (*definition.MetadataError,
// *registry.NotFoundError) before any network call; once an endpoint is
// resolved the call always yields a DispatchResult.
func (r *Runtime) Dispatch(ctx context.Context, task *model.TaskDescriptor) (*model.DispatchResult, error) {
	ctx = r.service.NewContext(ctx)
	if err := task.Validate(); err != nil {
		return nil, err
	}
	decision, err := r.service.router.Route(ctx, task)
	if err != nil {
		r.recordRoutingFailure(task, err)
		return nil, err
	}
	result := r.service.dispatcher.Invoke(ctx, decision.Request(task))
	r.record(task, decision.Endpoint, result)
	return result, nil
}

// DispatchBatch routes and invokes the tasks concurrently, bounded by the
// configured fan-out, and returns one result per task in submission order.
// Tasks that fail routing yield a failure result in place, so callers can
// zip results back to tasks without extra bookkeeping.
func (r *Runtime) DispatchBatch(ctx context.Context, tasks []*model.TaskDescriptor) []*model.DispatchResult {
	ctx = r.service.NewContext(ctx)
	results := make([]*model.DispatchResult, len(tasks))
	var requests []*model.DispatchRequest
	var positions []int
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			results[i] = routingFailure(task, err)
			continue
		}
		decision, err := r.service.router.Route(ctx, task)
		if err != nil {
			results[i] = routingFailure(task, err)
			r.recordRoutingFailure(task, err)
			continue
		}
		requests = append(requests, decision.Request(task))
		positions = append(positions, i)
	}
	if len(requests) > 0 {
		batch := r.service.dispatcher.InvokeBatch(ctx, requests)
		for j, result := range batch {
			i := positions[j]
			results[i] = result
			r.record(tasks[i], requests[j].Endpoint, result)
		}
	}
	return results
}

func (r *Runtime) poll(ctx context.Context, topic string) {
	defer r.wg.Done()
	config := r.service.config
	logger := r.service.logger
	for {
		if ctx.Err() != nil {
			return
		}
		tasks, err := r.service.adapter.FetchAndLock(ctx, topic, config.Workers.MaxFetch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to fetch tasks",
				zap.String("topic", topic),
				zap.Error(err))
			if !r.pause(ctx, config.Workers.PollInterval()) {
				return
			}
			continue
		}
		if len(tasks) == 0 {
			if !r.pause(ctx, config.Workers.PollInterval()) {
				return
			}
			continue
		}
		r.service.metrics.TasksFetched(ctx, len(tasks))
		group := &errgroup.Group{}
		group.SetLimit(config.Workers.Concurrency)
		for _, task := range tasks {
			task := task
			group.Go(func() error {
				r.process(ctx, task)
				return nil
			})
		}
		_ = group.Wait()
	}
}

// process walks one task through dispatch and reports the terminal outcome to
// the engine. Any error stays confined to this task.
func (r *Runtime) process(ctx context.Context, task *model.TaskDescriptor) {
	result, err := r.Dispatch(ctx, task)
	if err != nil {
		r.reportRoutingFailure(ctx, task, err)
		return
	}
	adapter := r.service.adapter
	if result.Succeeded() {
		err = adapter.Complete(ctx, task.TaskID, model.VariablesFromMap(result.Result))
		r.service.metrics.CompletionReported(ctx, err == nil)
		if err != nil {
			r.service.logger.Warn("failed to complete task",
				zap.String("taskId", task.TaskID),
				zap.Error(err))
		}
		return
	}
	err = adapter.Fail(ctx, task.TaskID, result.ErrorDetail, engineRetriesLeft(task))
	r.service.metrics.CompletionReported(ctx, err == nil)
	if err != nil {
		r.service.logger.Warn("failed to fail task",
			zap.String("taskId", task.TaskID),
			zap.Error(err))
	}
}

// reportRoutingFailure fails the task on the engine. Metadata gaps and
// unresolvable services are permanent, so engine retries are zeroed; with
// deferred resolution a missing service keeps a retry, the engine
// re-surfaces the task later and the service may have registered by then.
func (r *Runtime) reportRoutingFailure(ctx context.Context, task *model.TaskDescriptor, routeErr error) {
	retriesLeft := 0
	if registry.IsNotFound(routeErr) && policy.FromContext(ctx).DeferResolution() {
		retriesLeft = engineRetriesLeft(task)
		if task.Retries == nil {
			retriesLeft = 1
		}
	}
	err := r.service.adapter.Fail(ctx, task.TaskID, routeErr.Error(), retriesLeft)
	r.service.metrics.CompletionReported(ctx, err == nil)
	if err != nil {
		r.service.logger.Warn("failed to report routing failure",
			zap.String("taskId", task.TaskID),
			zap.Error(err))
	}
}

func (r *Runtime) record(task *model.TaskDescriptor, endpoint *model.ServiceEndpoint, result *model.DispatchResult) {
	record := analysis.NewRecord(task, endpoint, result, threadID(task))
	r.service.recorder.Record(record)
}

func (r *Runtime) recordRoutingFailure(task *model.TaskDescriptor, err error) {
	tag := "routing_failed"
	switch {
	case definition.IsMetadataError(err):
		tag = TagMetadataMissing
	case registry.IsNotFound(err):
		tag = TagServiceNotFound
	}
	record := analysis.NewRecord(task, nil, routingFailure(task, err), threadID(task), tag)
	r.service.recorder.Record(record)
}

func (r *Runtime) pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func routingFailure(task *model.TaskDescriptor, err error) *model.DispatchResult {
	return &model.DispatchResult{
		TaskID:      task.TaskID,
		Status:      model.DispatchFailed,
		ErrorDetail: err.Error(),
	}
}

func threadID(task *model.TaskDescriptor) string {
	if task == nil {
		return ""
	}
	if value, ok := task.Variables.Get(ThreadVariable); ok {
		if text, ok := value.(string); ok {
			return text
		}
	}
	return ""
}

func engineRetriesLeft(task *model.TaskDescriptor) int {
	if task.Retries == nil || *task.Retries <= 0 {
		return 0
	}
	return *task.Retries - 1
}

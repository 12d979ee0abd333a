// Package router turns a task descriptor into a dispatch decision by joining
// definition routing metadata with a live endpoint from the registry.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/definition"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/model"
	"github.com/taskgrid/taskgrid/registry"
	"github.com/taskgrid/taskgrid/tracing"
)

// Default budgets applied when neither the definition nor the configuration
// declares one.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2
)

// Defaults supplies the timeout and retry budget used when an activity does
// not declare its own.
type Defaults struct {
	Timeout time.Duration
	Retries int
}

// Decision is the outcome of routing one task. The outcome set is closed: a
// nil error means resolved, a *definition.MetadataError means the definition
// carries no usable routing metadata and a *registry.NotFoundError means no
// endpoint serves the requested identity.
type Decision struct {
	Endpoint   *model.ServiceEndpoint
	Properties *model.RoutingProperties
	Timeout    time.Duration
	Retries    int
	// Degraded is set when only an unhealthy endpoint was available.
	Degraded bool
}

// Request assembles the dispatch request for a routed task.
func (d *Decision) Request(task *model.TaskDescriptor) *model.DispatchRequest {
	return &model.DispatchRequest{
		Task:     task,
		Endpoint: d.Endpoint,
		Timeout:  d.Timeout,
		Retries:  d.Retries,
		Options:  d.Options(),
		Degraded: d.Degraded,
	}
}

// Options returns the free-form dispatch options forwarded to the target
// service: extension properties plus the requested service version.
func (d *Decision) Options() map[string]interface{} {
	if d.Properties == nil {
		return nil
	}
	var options map[string]interface{}
	for name, value := range d.Properties.Extensions {
		if options == nil {
			options = make(map[string]interface{})
		}
		options[name] = value
	}
	if d.Properties.Version != "" {
		if options == nil {
			options = make(map[string]interface{})
		}
		options[model.PropertyVersion] = d.Properties.Version
	}
	return options
}

// Router resolves tasks to dispatch decisions. It holds no per-task state and
// is safe for concurrent use.
type Router struct {
	definitions *definition.Service
	registry    *registry.Service
	defaults    Defaults
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New creates a router over the definition and registry services.
func New(definitions *definition.Service, endpoints *registry.Service, options ...Option) *Router {
	r := &Router{
		definitions: definitions,
		registry:    endpoints,
		defaults:    Defaults{Timeout: DefaultTimeout, Retries: DefaultRetries},
		logger:      logging.Nop(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Route resolves the target endpoint and effective budgets for a task without
// performing any network dispatch. The task is treated read-only.
func (r *Router) Route(ctx context.Context, task *model.TaskDescriptor) (decision *Decision, err error) {
	ctx, span := tracing.StartSpan(ctx, "router.route "+task.Name(), "INTERNAL")
	defer tracing.EndSpan(span, err)
	span.WithAttributes(map[string]string{
		"task.id":       task.TaskID,
		"definition.id": task.DefinitionID,
	})

	activity, err := r.definitions.Routing(ctx, task.DefinitionID, task.ActivityID)
	if err != nil {
		return nil, err
	}
	properties := activity.Properties
	if !properties.HasService() {
		return nil, &definition.MetadataError{
			DefinitionID: task.DefinitionID,
			ActivityID:   task.ActivityID,
			Reason:       "serviceType and serviceName are required",
		}
	}

	resolution, err := r.registry.Resolve(ctx, properties.Key())
	if err != nil {
		return nil, err
	}

	decision = &Decision{
		Endpoint:   resolution.Endpoint,
		Properties: properties,
		Timeout:    properties.Timeout(r.defaults.Timeout),
		Retries:    properties.Retries(r.defaults.Retries),
		Degraded:   resolution.Degraded,
	}
	r.metrics.TaskRouted(ctx)
	r.logger.Debug("task routed",
		zap.String("taskId", task.TaskID),
		zap.String("service", properties.Key().String()),
		zap.String("baseURL", decision.Endpoint.BaseURL),
		zap.Duration("timeout", decision.Timeout),
		zap.Int("retries", decision.Retries),
		zap.Bool("degraded", decision.Degraded))
	return decision, nil
}

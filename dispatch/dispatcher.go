package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/viant/structology/conv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskgrid/taskgrid/internal/clock"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/model"
	"github.com/taskgrid/taskgrid/policy"
	"github.com/taskgrid/taskgrid/tracing"
)

// DefaultFanout bounds how many batch dispatches run concurrently.
const DefaultFanout = 8

// Dispatcher delivers routed tasks to their endpoints. Retries cover only
// transport failures, per-attempt timeouts and the retryable status set;
// validation rejections are final on the first reply. Every invocation ends
// in a DispatchResult.
type Dispatcher struct {
	transport *Transport
	backoff   Backoff
	breaker   *Breaker
	fanout    int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a dispatcher over the transport.
func New(transport *Transport, options ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		backoff:   DefaultBackoff(),
		fanout:    DefaultFanout,
		logger:    logging.Nop(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Breaker exposes the circuit breaker, nil when none is configured.
func (d *Dispatcher) Breaker() *Breaker {
	return d.breaker
}

// Invoke delivers one routed task and returns its terminal outcome. The
// request timeout bounds each attempt separately; the context bounds the
// whole invocation including backoff pauses.
func (d *Dispatcher) Invoke(ctx context.Context, request *model.DispatchRequest) (result *model.DispatchResult) {
	task := request.Task
	endpoint := request.Endpoint
	started := clock.Now()
	result = &model.DispatchResult{
		TaskID:  task.TaskID,
		Status:  model.DispatchFailed,
		BaseURL: endpoint.BaseURL,
	}
	ctx, span := tracing.StartSpan(ctx, "dispatch.invoke "+task.Name(), "CLIENT")
	defer func() {
		result.LatencyMs = clock.Since(started).Milliseconds()
		span.WithAttributes(map[string]string{
			"dispatch.status":   string(result.Status),
			"dispatch.attempts": strconv.Itoa(result.Attempts),
			"endpoint.baseURL":  endpoint.BaseURL,
		})
		span.SetStatusFromHTTPCode(result.StatusCode)
		tracing.EndSpan(span, nil)
		d.metrics.DispatchCompleted(ctx, endpoint.ServiceType, string(result.Status), clock.Since(started))
		d.logger.Debug("task dispatched",
			zap.String("taskId", task.TaskID),
			zap.String("baseURL", endpoint.BaseURL),
			zap.String("status", string(result.Status)),
			zap.Int("attempts", result.Attempts),
			zap.Int64("latencyMs", result.LatencyMs))
	}()

	pol := policy.FromContext(ctx)
	if request.Degraded && !pol.DispatchDegraded() {
		result.ErrorDetail = fmt.Sprintf("endpoint %v is unhealthy and degraded dispatch is disabled", endpoint.BaseURL)
		return result
	}

	wire := buildTaskRequest(request)
	maxAttempts := request.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !d.breaker.Allow(endpoint.BaseURL) {
			result.Status = model.DispatchFailed
			result.ErrorDetail = fmt.Sprintf("circuit breaker open for %v", endpoint.BaseURL)
			return result
		}

		response, statusCode, err := d.attempt(ctx, endpoint, wire, request.Timeout)
		result.Attempts = attempt
		result.StatusCode = statusCode

		retryable := false
		switch {
		case err != nil && statusCode == 0:
			// the service was never reached or the reply never arrived
			if isTimeout(err) {
				result.Status = model.DispatchTimedOut
				result.ErrorDetail = fmt.Sprintf("attempt %v timed out after %v", attempt, request.Timeout)
			} else {
				result.Status = model.DispatchFailed
				result.ErrorDetail = err.Error()
			}
			d.breaker.ReportFailure(endpoint.BaseURL)
			retryable = true
		case err != nil:
			// HTTP round trip completed but the reply envelope was unreadable
			result.Status = model.DispatchFailed
			result.ErrorDetail = err.Error()
			d.breaker.ReportSuccess(endpoint.BaseURL)
		case statusCode >= 200 && statusCode < 300:
			result.Status = model.DispatchSucceeded
			result.Result = response.Result
			result.ErrorDetail = ""
			d.breaker.ReportSuccess(endpoint.BaseURL)
		default:
			result.Status = model.DispatchFailed
			result.ErrorDetail = response.Error
			if pol.IsRetryableStatus(statusCode) {
				retryable = true
				d.breaker.ReportFailure(endpoint.BaseURL)
			} else {
				// the service answered and rejected the task, the circuit is fine
				d.breaker.ReportSuccess(endpoint.BaseURL)
			}
		}

		if result.Status == model.DispatchSucceeded || !retryable || attempt == maxAttempts {
			return result
		}
		if ctx.Err() != nil {
			result.Status = model.DispatchTimedOut
			result.ErrorDetail = ctx.Err().Error()
			return result
		}

		delay := d.backoff.Delay(attempt)
		d.metrics.RetryScheduled(ctx, endpoint.ServiceType)
		d.logger.Debug("dispatch retry scheduled",
			zap.String("taskId", task.TaskID),
			zap.String("baseURL", endpoint.BaseURL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Status = model.DispatchTimedOut
			result.ErrorDetail = ctx.Err().Error()
			return result
		}
	}
	return result
}

// InvokeBatch dispatches the requests concurrently, at most fanout in flight,
// and returns the results in request order.
func (d *Dispatcher) InvokeBatch(ctx context.Context, requests []*model.DispatchRequest) []*model.DispatchResult {
	results := make([]*model.DispatchResult, len(requests))
	group := &errgroup.Group{}
	group.SetLimit(d.fanout)
	for i, request := range requests {
		i, request := i, request
		group.Go(func() error {
			results[i] = d.Invoke(ctx, request)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (d *Dispatcher) attempt(ctx context.Context, endpoint *model.ServiceEndpoint, request *TaskRequest, timeout time.Duration) (*TaskResponse, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.transport.ProcessTask(ctx, endpoint, request)
}

func buildTaskRequest(request *model.DispatchRequest) *TaskRequest {
	task := request.Task
	return &TaskRequest{
		TaskID:        task.TaskID,
		TaskName:      task.Name(),
		Documentation: task.Documentation,
		Variables:     task.Variables,
		Options:       request.Options,
	}
}

// isTimeout classifies deadline expiry and cancellation, both of which end an
// attempt without a reply.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// resultConverter relaxes decoding of loosely typed result payloads into
// caller structs.
var resultConverter = newResultConverter()

func newResultConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return conv.NewConverter(options)
}

// DecodeResult converts a dispatch result payload into a typed target, which
// must be a pointer.
func DecodeResult(result map[string]interface{}, target interface{}) error {
	if target == nil {
		return fmt.Errorf("decode target was empty")
	}
	return resultConverter.Convert(result, target)
}

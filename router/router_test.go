package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/definition"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/model"
	"github.com/taskgrid/taskgrid/registry"
)

const pipelineDefinition = `
<definitions>
  <process id="pipeline">
    <serviceTask id="score" name="Score task">
      <extensionElements>
        <property name="serviceType" value="Score"/>
        <property name="serviceName" value="scorer"/>
        <property name="version" value="v2"/>
        <property name="timeoutMs" value="2000"/>
        <property name="retryCount" value="1"/>
        <property name="mode" value="batch"/>
      </extensionElements>
    </serviceTask>
    <serviceTask id="summarize" name="Summarize">
      <documentation>serviceType: llm; serviceName: gpt4</documentation>
    </serviceTask>
    <userTask id="review" name="Review"/>
  </process>
</definitions>`

func newTestRouter(t *testing.T, options ...Option) (*Router, *registry.Service) {
	t.Helper()
	definitions := definition.New(definition.SourceFunc(
		func(ctx context.Context, definitionID string) (string, error) {
			return pipelineDefinition, nil
		}))
	endpoints := registry.New()
	require.NoError(t, endpoints.Register(&model.ServiceEndpoint{
		ServiceType: "Score",
		ServiceName: "scorer",
		BaseURL:     "http://scorer:9000",
		Healthy:     true,
	}))
	require.NoError(t, endpoints.Register(&model.ServiceEndpoint{
		ServiceType: "llm",
		ServiceName: "gpt4",
		BaseURL:     "http://gpt4:8080",
		Healthy:     true,
	}))
	options = append([]Option{WithDefaults(Defaults{Timeout: 5 * time.Second, Retries: 3})}, options...)
	return New(definitions, endpoints, options...), endpoints
}

func newTask(activityID string) *model.TaskDescriptor {
	return &model.TaskDescriptor{
		TaskID:            "task-1",
		ActivityID:        activityID,
		ProcessInstanceID: "proc-1",
		DefinitionID:      "pipeline:3",
	}
}

func TestRouter_RouteStructuredProperties(t *testing.T) {
	router, _ := newTestRouter(t)
	decision, err := router.Route(context.Background(), newTask("score"))
	require.NoError(t, err)

	assert.Equal(t, "http://scorer:9000", decision.Endpoint.BaseURL)
	assert.Equal(t, 2*time.Second, decision.Timeout)
	assert.Equal(t, 1, decision.Retries)
	assert.False(t, decision.Degraded)
	assert.Equal(t, map[string]interface{}{"mode": "batch", "version": "v2"}, decision.Options())
}

func TestRouter_RouteDefaultsApplied(t *testing.T) {
	router, _ := newTestRouter(t)
	decision, err := router.Route(context.Background(), newTask("summarize"))
	require.NoError(t, err)

	assert.Equal(t, "http://gpt4:8080", decision.Endpoint.BaseURL)
	assert.Equal(t, 5*time.Second, decision.Timeout)
	assert.Equal(t, 3, decision.Retries)
	assert.Nil(t, decision.Options())
}

func TestRouter_RouteMissingMetadata(t *testing.T) {
	router, _ := newTestRouter(t)

	_, err := router.Route(context.Background(), newTask("review"))
	require.Error(t, err)
	assert.True(t, definition.IsMetadataError(err))

	_, err = router.Route(context.Background(), newTask("no-such-activity"))
	require.Error(t, err)
	assert.True(t, definition.IsMetadataError(err))
}

func TestRouter_RouteServiceNotFound(t *testing.T) {
	router, endpoints := newTestRouter(t)
	endpoints.Remove(model.ServiceKey{Type: "llm", Name: "gpt4"})

	_, err := router.Route(context.Background(), newTask("summarize"))
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}

func TestRouter_RouteDegradedEndpoint(t *testing.T) {
	router, endpoints := newTestRouter(t)
	endpoints.MarkUnhealthy("http://scorer:9000")

	decision, err := router.Route(context.Background(), newTask("score"))
	require.NoError(t, err)
	assert.True(t, decision.Degraded)
	assert.False(t, decision.Endpoint.Healthy)
	assert.Equal(t, "http://scorer:9000", decision.Endpoint.BaseURL)
}

func TestRouter_RouteCountsRoutedTasks(t *testing.T) {
	tracker := metrics.New()
	router, _ := newTestRouter(t, WithMetrics(tracker))

	_, err := router.Route(context.Background(), newTask("score"))
	require.NoError(t, err)
	_, err = router.Route(context.Background(), newTask("summarize"))
	require.NoError(t, err)

	assert.Equal(t, 2, tracker.Snapshot().TasksRouted)
}

func TestDecision_Request(t *testing.T) {
	router, _ := newTestRouter(t)
	task := newTask("score")
	decision, err := router.Route(context.Background(), task)
	require.NoError(t, err)

	request := decision.Request(task)
	assert.Same(t, task, request.Task)
	assert.Equal(t, decision.Endpoint, request.Endpoint)
	assert.Equal(t, 2*time.Second, request.Timeout)
	assert.Equal(t, 1, request.Retries)
	assert.Equal(t, "batch", request.Options["mode"])
}

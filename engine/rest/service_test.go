package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/model"
)

func TestService_FetchAndLock(t *testing.T) {
	var captured fetchAndLockRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/external-tasks/fetch-and-lock", request.URL.Path)
		data, err := io.ReadAll(request.Body)
		assert.NoError(t, err)
		_ = json.Unmarshal(data, &captured)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`[
			{"taskId": "task-1", "activityId": "score-document", "definitionId": "pipeline:3",
			 "processInstanceId": "proc-1",
			 "variables": [{"name": "documentId", "value": "doc-42"}]},
			{"taskId": "task-2", "activityId": "summarize", "definitionId": "pipeline:3"}
		]`))
	}))
	defer server.Close()

	svc, err := New(Config{BaseURL: server.URL, WorkerID: "worker-1"})
	require.NoError(t, err)

	tasks, err := svc.FetchAndLock(context.Background(), "scoring", 5)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "worker-1", captured.WorkerID)
	assert.Equal(t, "scoring", captured.Topic)
	assert.Equal(t, 5, captured.MaxTasks)
	assert.Equal(t, DefaultLockDuration.Milliseconds(), captured.LockDurationMs)

	assert.Equal(t, "task-1", tasks[0].TaskID)
	assert.Equal(t, "score-document", tasks[0].ActivityID)
	assert.Equal(t, "pipeline:3", tasks[0].DefinitionID)
	value, ok := tasks[0].Variables.Get("documentId")
	require.True(t, ok)
	assert.Equal(t, "doc-42", value)
	assert.Equal(t, "task-2", tasks[1].TaskID)
}

func TestService_CompleteAndFail(t *testing.T) {
	type call struct {
		path string
		body map[string]interface{}
	}
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		data, _ := io.ReadAll(request.Body)
		body := map[string]interface{}{}
		_ = json.Unmarshal(data, &body)
		calls = append(calls, call{path: request.URL.Path, body: body})
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc, err := New(Config{BaseURL: server.URL, WorkerID: "worker-1"})
	require.NoError(t, err)
	ctx := context.Background()

	var variables model.Variables
	variables.Add("score", 0.91)
	require.NoError(t, svc.Complete(ctx, "task-1", variables))
	require.NoError(t, svc.Fail(ctx, "task-2", "scoring service unavailable", 0))

	require.Len(t, calls, 2)
	assert.Equal(t, "/external-tasks/task-1/complete", calls[0].path)
	assert.Equal(t, "worker-1", calls[0].body["workerId"])

	assert.Equal(t, "/external-tasks/task-2/fail", calls[1].path)
	assert.Equal(t, "scoring service unavailable", calls[1].body["errorDetail"])
	assert.Equal(t, float64(0), calls[1].body["retries"])
}

func TestService_DefinitionXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/definitions/pipeline:3/xml", request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"id": "pipeline:3", "xml": "<definitions/>"}`))
	}))
	defer server.Close()

	svc, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	document, err := svc.DefinitionXML(context.Background(), "pipeline:3")
	require.NoError(t, err)
	assert.Equal(t, "<definitions/>", document)
}

func TestService_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte(`{"type": "NotFoundException", "message": "no definition pipeline:9"}`))
	}))
	defer server.Close()

	svc, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.DefinitionXML(context.Background(), "pipeline:9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var engineErr *Error
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, http.StatusNotFound, engineErr.StatusCode)
	assert.Equal(t, "NotFoundException", engineErr.Type)
	assert.Contains(t, engineErr.Error(), "no definition pipeline:9")
}

func TestService_ErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		_, _ = writer.Write([]byte("upstream engine offline"))
	}))
	defer server.Close()

	svc, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	err = svc.Fail(context.Background(), "task-1", "detail", 1)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))

	var engineErr *Error
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, http.StatusBadGateway, engineErr.StatusCode)
	assert.Equal(t, "upstream engine offline", engineErr.Message)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	svc, err := New(Config{BaseURL: "http://engine:8080/"})
	require.NoError(t, err)
	assert.NotEmpty(t, svc.config.WorkerID)
	assert.Equal(t, "http://engine:8080/external-tasks/fetch-and-lock", svc.endpoint("/external-tasks/fetch-and-lock"))
}

package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/model"
)

func serviceEndpoint(serverURL string) *model.ServiceEndpoint {
	return &model.ServiceEndpoint{
		ServiceType: "Score",
		ServiceName: "scorer",
		BaseURL:     serverURL,
		Healthy:     true,
	}
}

func scoreTaskRequest() *TaskRequest {
	variables := model.Variables{}
	variables.Add("documentId", "doc-9")
	variables.Add("threshold", 0.5)
	return &TaskRequest{
		TaskID:        "task-1",
		TaskName:      "Score",
		Documentation: "serviceType: Score",
		Variables:     variables,
	}
}

func TestTransport_ProcessTask(t *testing.T) {
	var captured struct {
		method      string
		contentType string
		body        string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		captured.method = r.Method
		captured.contentType = r.Header.Get("Content-Type")
		captured.body = string(data)
		assert.Equal(t, ProcessTaskPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"score":0.9}}`))
	}))
	defer server.Close()

	transport := NewTransport()
	response, statusCode, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, 0.9, response.Result["score"])
	assert.Empty(t, response.Error)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "application/json", captured.contentType)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(captured.body), &body))
	assert.Equal(t, "task-1", body["taskId"])
	assert.Equal(t, "Score", body["taskName"])
	assert.Equal(t, map[string]interface{}{"documentId": "doc-9", "threshold": 0.5}, body["variables"])
}

func TestTransport_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"variable documentId is required"}`))
	}))
	defer server.Close()

	transport := NewTransport()
	response, statusCode, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.NoError(t, err, "a non-2xx reply is a dispatch outcome, not a transport error")

	assert.Equal(t, http.StatusBadRequest, statusCode)
	assert.Equal(t, "variable documentId is required", response.Error)
}

func TestTransport_NonEnvelopeErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	transport := NewTransport()
	response, statusCode, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, statusCode)
	assert.Equal(t, "upstream down", response.Error)
}

func TestTransport_MalformedSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	transport := NewTransport()
	_, statusCode, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, statusCode, "status is preserved so the caller can classify")
}

func TestTransport_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	transport := NewTransport()
	_, statusCode, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.Error(t, err)
	assert.Equal(t, 0, statusCode, "no HTTP response was received")
}

func TestTransport_BearerCredentials(t *testing.T) {
	tokenURL := filepath.Join(t.TempDir(), "token.txt")
	require.NoError(t, os.WriteFile(tokenURL, []byte("s3cret-token\n"), 0o600))

	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer server.Close()

	endpoint := serviceEndpoint(server.URL)
	endpoint.CredentialsURL = tokenURL

	transport := NewTransport(WithAuthProvider(NewAuthProvider()))
	_, statusCode, err := transport.ProcessTask(context.Background(), endpoint, scoreTaskRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, "Bearer s3cret-token", authorization)
}

func TestTransport_CloseIdleConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer server.Close()

	transport := NewTransport()
	_, _, err := transport.ProcessTask(context.Background(), serviceEndpoint(server.URL), scoreTaskRequest())
	require.NoError(t, err)
	transport.CloseIdleConnections()
}

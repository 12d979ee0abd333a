// Package dispatch invokes execution service endpoints over HTTP with pooled
// connections, bounded retries and per-endpoint circuit breaking. Every task
// is posted to the uniform process_task contract and the outcome is always a
// DispatchResult, never an error escaping the dispatcher.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskgrid/taskgrid/model"
)

// ProcessTaskPath is the uniform invocation path exposed by every execution
// service.
const ProcessTaskPath = "/process_task"

// maxErrorDetail bounds how much of a non-envelope error body is preserved.
const maxErrorDetail = 2048

// TaskRequest is the wire form of a dispatched task.
type TaskRequest struct {
	TaskID        string                 `json:"taskId"`
	TaskName      string                 `json:"taskName"`
	Documentation string                 `json:"documentation,omitempty"`
	Variables     model.Variables        `json:"variables,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty"`
}

// TaskResponse is the reply envelope of an execution service: result on 2xx,
// error detail otherwise.
type TaskResponse struct {
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// TransportConfig controls connection pooling for endpoint clients.
type TransportConfig struct {
	MaxIdleConns        int           `json:"maxIdleConns,omitempty" yaml:"maxIdleConns,omitempty"`
	MaxIdleConnsPerHost int           `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`
	IdleConnTimeout     time.Duration `json:"idleConnTimeout,omitempty" yaml:"idleConnTimeout,omitempty"`
}

// DefaultTransportConfig returns the pooling defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Transport posts tasks to execution services. One pooled http.Client is kept
// per distinct base URL so connections are reused across dispatches. It is
// safe for concurrent use.
type Transport struct {
	config  TransportConfig
	auth    *AuthProvider
	mu      sync.RWMutex
	clients map[string]*http.Client
}

// TransportOption customises the transport.
type TransportOption func(*Transport)

// WithTransportConfig overrides the pooling configuration.
func WithTransportConfig(config TransportConfig) TransportOption {
	return func(t *Transport) { t.config = config }
}

// WithAuthProvider attaches endpoint credential resolution.
func WithAuthProvider(auth *AuthProvider) TransportOption {
	return func(t *Transport) { t.auth = auth }
}

// NewTransport creates a transport with pooled per-endpoint clients.
func NewTransport(options ...TransportOption) *Transport {
	t := &Transport{
		config:  DefaultTransportConfig(),
		clients: make(map[string]*http.Client),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

// ProcessTask posts one task to the endpoint and decodes the reply envelope.
// The returned status code is zero when no HTTP response was received; a
// non-2xx response is not an error here, the caller decides how to treat it.
func (t *Transport) ProcessTask(ctx context.Context, endpoint *model.ServiceEndpoint, request *TaskRequest) (*TaskResponse, int, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode task request: %w", err)
	}
	URL := strings.TrimSuffix(endpoint.BaseURL, "/") + ProcessTaskPath
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, URL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build task request for %v: %w", URL, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if t.auth != nil {
		if err := t.auth.Authorize(ctx, httpRequest, endpoint); err != nil {
			return nil, 0, err
		}
	}

	httpResponse, err := t.client(endpoint.BaseURL).Do(httpRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call %v: %w", URL, err)
	}
	defer httpResponse.Body.Close()
	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response from %v: %w", URL, err)
	}

	statusCode := httpResponse.StatusCode
	response := &TaskResponse{}
	if statusCode >= 200 && statusCode < 300 {
		if err := json.Unmarshal(data, response); err != nil {
			return nil, statusCode, fmt.Errorf("malformed response from %v: %w", URL, err)
		}
		return response, statusCode, nil
	}
	if err := json.Unmarshal(data, response); err != nil || response.Error == "" {
		detail := strings.TrimSpace(string(data))
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		if detail == "" {
			detail = httpResponse.Status
		}
		response.Error = detail
	}
	return response, statusCode, nil
}

// client returns the pooled client for a base URL, building it on first use.
func (t *Transport) client(baseURL string) *http.Client {
	t.mu.RLock()
	client, ok := t.clients[baseURL]
	t.mu.RUnlock()
	if ok {
		return client
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if client, ok = t.clients[baseURL]; ok {
		return client
	}
	client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        t.config.MaxIdleConns,
			MaxIdleConnsPerHost: t.config.MaxIdleConnsPerHost,
			IdleConnTimeout:     t.config.IdleConnTimeout,
		},
	}
	t.clients[baseURL] = client
	return client
}

// CloseIdleConnections releases pooled connections of every client.
func (t *Transport) CloseIdleConnections() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, client := range t.clients {
		client.CloseIdleConnections()
	}
}

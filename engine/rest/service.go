// Package rest implements the engine adapter against a process engine REST
// API: fetch-and-lock, complete, fail and definition document endpoints.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/engine"
	"github.com/taskgrid/taskgrid/internal/idgen"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/model"
)

// Defaults applied by New when the config leaves them zero.
const (
	DefaultLockDuration = 30 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
)

// maxErrorBody bounds how much of a non-JSON error body is kept as detail.
const maxErrorBody = 2048

// Config addresses the engine REST API. WorkerID identifies this consumer in
// fetch-and-lock requests so the engine can attribute locks; one is generated
// when empty.
type Config struct {
	BaseURL      string        `json:"baseURL" yaml:"baseURL"`
	WorkerID     string        `json:"workerId,omitempty" yaml:"workerId,omitempty"`
	LockDuration time.Duration `json:"lockDuration,omitempty" yaml:"lockDuration,omitempty"`
	HTTPTimeout  time.Duration `json:"httpTimeout,omitempty" yaml:"httpTimeout,omitempty"`
}

// Error is the engine error envelope, carrying the HTTP status it arrived
// with.
type Error struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("engine: %v: %v (status %v)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("engine: %v (status %v)", e.Message, e.StatusCode)
}

// IsNotFound returns true when err is an engine error with a 404 status.
func IsNotFound(err error) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.StatusCode == http.StatusNotFound
}

// Service talks to the engine REST API with one pooled HTTP client.
type Service struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// Ensure Service implements the engine adapter.
var _ engine.Adapter = (*Service)(nil)

// Option customises the REST adapter.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// New creates a REST engine adapter for the supplied config.
func New(config Config, options ...Option) (*Service, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("engine base URL cannot be empty")
	}
	if config.WorkerID == "" {
		config.WorkerID = "taskgrid-" + idgen.New()
	}
	if config.LockDuration <= 0 {
		config.LockDuration = DefaultLockDuration
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = DefaultHTTPTimeout
	}
	s := &Service{
		config: config,
		logger: logging.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout: config.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return s, nil
}

type fetchAndLockRequest struct {
	WorkerID       string `json:"workerId"`
	Topic          string `json:"topic"`
	MaxTasks       int    `json:"maxTasks"`
	LockDurationMs int64  `json:"lockDurationMs,omitempty"`
}

type completeRequest struct {
	WorkerID  string          `json:"workerId"`
	Variables model.Variables `json:"variables,omitempty"`
}

type failRequest struct {
	WorkerID    string `json:"workerId"`
	ErrorDetail string `json:"errorDetail"`
	Retries     int    `json:"retries"`
}

type definitionResponse struct {
	ID  string `json:"id"`
	XML string `json:"xml"`
}

// FetchAndLock leases up to maxTasks tasks waiting on the topic.
func (s *Service) FetchAndLock(ctx context.Context, topic string, maxTasks int) ([]*model.TaskDescriptor, error) {
	request := &fetchAndLockRequest{
		WorkerID:       s.config.WorkerID,
		Topic:          topic,
		MaxTasks:       maxTasks,
		LockDurationMs: s.config.LockDuration.Milliseconds(),
	}
	var tasks []*model.TaskDescriptor
	if err := s.post(ctx, "/external-tasks/fetch-and-lock", request, &tasks); err != nil {
		return nil, err
	}
	s.logger.Debug("fetched external tasks",
		zap.String("topic", topic),
		zap.Int("count", len(tasks)))
	return tasks, nil
}

// Complete reports a successful task with its output variables.
func (s *Service) Complete(ctx context.Context, taskID string, variables model.Variables) error {
	request := &completeRequest{WorkerID: s.config.WorkerID, Variables: variables}
	return s.post(ctx, "/external-tasks/"+taskID+"/complete", request, nil)
}

// Fail reports a failed task; retriesLeft zero makes the failure final on the
// engine side.
func (s *Service) Fail(ctx context.Context, taskID string, detail string, retriesLeft int) error {
	request := &failRequest{WorkerID: s.config.WorkerID, ErrorDetail: detail, Retries: retriesLeft}
	return s.post(ctx, "/external-tasks/"+taskID+"/fail", request, nil)
}

// DefinitionXML reads the raw definition document.
func (s *Service) DefinitionXML(ctx context.Context, definitionID string) (string, error) {
	response := &definitionResponse{}
	if err := s.get(ctx, "/definitions/"+definitionID+"/xml", response); err != nil {
		return "", err
	}
	return response.XML, nil
}

func (s *Service) post(ctx context.Context, path string, payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal engine request: %w", err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	return s.do(httpRequest, target)
}

func (s *Service) get(ctx context.Context, path string, target interface{}) error {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	return s.do(httpRequest, target)
}

func (s *Service) do(httpRequest *http.Request, target interface{}) error {
	httpResponse, err := s.client.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer httpResponse.Body.Close()
	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("failed to read engine response: %w", err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return s.asError(httpResponse, data)
	}
	if target == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}
	return nil
}

// asError decodes the engine error envelope, falling back to the raw body.
func (s *Service) asError(httpResponse *http.Response, data []byte) error {
	engineErr := &Error{StatusCode: httpResponse.StatusCode}
	if err := json.Unmarshal(data, engineErr); err == nil && engineErr.Message != "" {
		return engineErr
	}
	detail := strings.TrimSpace(string(data))
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody]
	}
	if detail == "" {
		detail = httpResponse.Status
	}
	engineErr.Message = detail
	return engineErr
}

func (s *Service) endpoint(path string) string {
	return strings.TrimSuffix(s.config.BaseURL, "/") + path
}

package model

import (
	"time"
)

// DispatchStatus enumerates terminal dispatch outcomes.
type DispatchStatus string

const (
	// DispatchSucceeded indicates the service returned a result.
	DispatchSucceeded DispatchStatus = "success"
	// DispatchFailed indicates a non-retryable error or an exhausted retry
	// budget.
	DispatchFailed DispatchStatus = "failure"
	// DispatchTimedOut indicates the per-attempt timeout elapsed on the final
	// attempt.
	DispatchTimedOut DispatchStatus = "timeout"
)

// DispatchRequest is a routed task ready for delivery to an endpoint.
type DispatchRequest struct {
	Task     *TaskDescriptor        `json:"task"`
	Endpoint *ServiceEndpoint       `json:"endpoint"`
	Timeout  time.Duration          `json:"timeout,omitempty"`
	Retries  int                    `json:"retries,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
	Degraded bool                   `json:"degraded,omitempty"`
}

// DispatchResult captures the outcome of a dispatch after all attempts.
type DispatchResult struct {
	TaskID      string                 `json:"taskId"`
	Status      DispatchStatus         `json:"status"`
	Result      map[string]interface{} `json:"result,omitempty"`
	ErrorDetail string                 `json:"errorDetail,omitempty"`
	StatusCode  int                    `json:"statusCode,omitempty"`
	Attempts    int                    `json:"attempts"`
	LatencyMs   int64                  `json:"latencyMs"`
	BaseURL     string                 `json:"baseURL,omitempty"`
}

// Succeeded returns true for a successful dispatch.
func (r *DispatchResult) Succeeded() bool {
	return r != nil && r.Status == DispatchSucceeded
}

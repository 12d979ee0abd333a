// Package policy carries optional per-run dispatch settings that can be
// attached to a context. It is deliberately decoupled from the rest of
// taskgrid so that using it is entirely opt-in. Callers that do not embed a
// Policy in their context keep the default behaviour.
package policy

import (
	"context"
)

// Degraded dispatch modes recognised by the dispatcher when the registry
// resolves only an unhealthy endpoint.
const (
	DegradedAttempt = "attempt" // dispatch to the unhealthy endpoint anyway (default)
	DegradedFail    = "fail"    // fail the task without a network call
)

// defaultRetryableStatusCodes lists the upstream HTTP statuses treated as
// transient when no policy overrides them.
var defaultRetryableStatusCodes = []int{502, 503, 504}

// Policy represents the dispatch settings for the current run.
//
//   - DegradedDispatch controls what happens when only an unhealthy endpoint
//     is available (attempt / fail).
//   - DeferredResolution keeps engine-side retries intact when a service
//     cannot be resolved, so the engine re-delivers the task later instead of
//     failing it outright.
//   - RetryableStatusCodes overrides the HTTP statuses the dispatcher retries.
//
// A nil *Policy means "attempt degraded dispatch, fail unresolved services
// fast, retry 502/503/504" and is therefore the zero-cost default.
type Policy struct {
	DegradedDispatch     string `json:"degradedDispatch,omitempty" yaml:"degradedDispatch,omitempty"`
	DeferredResolution   bool   `json:"deferredResolution,omitempty" yaml:"deferredResolution,omitempty"`
	RetryableStatusCodes []int  `json:"retryableStatusCodes,omitempty" yaml:"retryableStatusCodes,omitempty"`
}

// DispatchDegraded reports whether an unhealthy endpoint may still be called.
func (p *Policy) DispatchDegraded() bool {
	if p == nil {
		return true
	}
	return p.DegradedDispatch != DegradedFail
}

// DeferResolution reports whether an unresolved service should be handed back
// to the engine with its retries intact.
func (p *Policy) DeferResolution() bool {
	if p == nil {
		return false
	}
	return p.DeferredResolution
}

// IsRetryableStatus reports whether an upstream HTTP status warrants another
// dispatch attempt.
func (p *Policy) IsRetryableStatus(code int) bool {
	codes := defaultRetryableStatusCodes
	if p != nil && len(p.RetryableStatusCodes) > 0 {
		codes = p.RetryableStatusCodes
	}
	for _, candidate := range codes {
		if code == candidate {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.RetryableStatusCodes = append([]int(nil), p.RetryableStatusCodes...)
	return &clone
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy from ctx, nil when absent.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}

package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Defaults(t *testing.T) {
	var p *Policy
	assert.True(t, p.DispatchDegraded())
	assert.False(t, p.DeferResolution())
	assert.True(t, p.IsRetryableStatus(502))
	assert.True(t, p.IsRetryableStatus(503))
	assert.True(t, p.IsRetryableStatus(504))
	assert.False(t, p.IsRetryableStatus(500))
	assert.False(t, p.IsRetryableStatus(404))
}

func TestPolicy_Overrides(t *testing.T) {
	p := &Policy{
		DegradedDispatch:     DegradedFail,
		DeferredResolution:   true,
		RetryableStatusCodes: []int{429, 503},
	}
	assert.False(t, p.DispatchDegraded())
	assert.True(t, p.DeferResolution())
	assert.True(t, p.IsRetryableStatus(429))
	assert.True(t, p.IsRetryableStatus(503))
	assert.False(t, p.IsRetryableStatus(502), "override replaces the default set")
}

func TestPolicy_Context(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	p := &Policy{DeferredResolution: true}
	ctx := WithPolicy(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
}

func TestPolicy_Clone(t *testing.T) {
	p := &Policy{RetryableStatusCodes: []int{429}}
	clone := p.Clone()
	clone.RetryableStatusCodes[0] = 500
	assert.Equal(t, 429, p.RetryableStatusCodes[0])

	var nilPolicy *Policy
	assert.Nil(t, nilPolicy.Clone())
}

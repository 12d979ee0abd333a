package dispatch

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the pause before a retry attempt: exponential growth from
// InitialDelay, capped at MaxDelay, with a random jitter fraction so
// synchronised retries spread out.
type Backoff struct {
	InitialDelay time.Duration `json:"initialDelay,omitempty" yaml:"initialDelay,omitempty"`
	Multiplier   float64       `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	MaxDelay     time.Duration `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	Jitter       float64       `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// DefaultBackoff returns the retry pacing defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
		Jitter:       0.2,
	}
}

// Delay returns the pause before the given retry, attempt counting the calls
// already made (1 after the first failure).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.InitialDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	delay := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if max := float64(b.MaxDelay); max > 0 && delay > max {
		delay = max
	}
	if b.Jitter > 0 {
		jitter := b.Jitter
		if jitter > 1 {
			jitter = 1
		}
		delay *= 1 - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(delay)
}

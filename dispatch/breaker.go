package dispatch

import (
	"sync"
	"time"

	"github.com/taskgrid/taskgrid/internal/clock"
)

// Circuit states per base URL.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig controls when a circuit opens and how long it stays open.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int `json:"failureThreshold,omitempty" yaml:"failureThreshold,omitempty"`
	// Cooldown is how long an open circuit rejects calls before admitting a
	// half-open probe.
	Cooldown time.Duration `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

// DefaultBreakerConfig returns the circuit defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second}
}

// StateChangeFunc observes circuit transitions, keyed by base URL.
type StateChangeFunc func(baseURL string, state BreakerState)

// Breaker tracks one circuit per base URL. A nil *Breaker admits everything,
// so circuit breaking is entirely opt-in.
type Breaker struct {
	config   BreakerConfig
	onChange StateChangeFunc
	mu       sync.Mutex
	entries  map[string]*breakerEntry
}

type breakerEntry struct {
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a circuit breaker; onChange may be nil.
func NewBreaker(config BreakerConfig, onChange StateChangeFunc) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{
		config:   config,
		onChange: onChange,
		entries:  make(map[string]*breakerEntry),
	}
}

// Allow reports whether a call to the base URL may proceed. An open circuit
// starts admitting a single probe once the cooldown elapsed.
func (b *Breaker) Allow(baseURL string) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	entry := b.entries[baseURL]
	if entry == nil {
		b.mu.Unlock()
		return true
	}
	switch entry.state {
	case BreakerOpen:
		if clock.Since(entry.openedAt) < b.config.Cooldown {
			b.mu.Unlock()
			return false
		}
		entry.state = BreakerHalfOpen
		entry.probing = true
		b.mu.Unlock()
		b.notify(baseURL, BreakerHalfOpen)
		return true
	case BreakerHalfOpen:
		if entry.probing {
			b.mu.Unlock()
			return false
		}
		entry.probing = true
		b.mu.Unlock()
		return true
	default:
		b.mu.Unlock()
		return true
	}
}

// ReportSuccess closes the circuit and resets the failure count.
func (b *Breaker) ReportSuccess(baseURL string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	entry := b.entries[baseURL]
	if entry == nil {
		b.mu.Unlock()
		return
	}
	recovered := entry.state != BreakerClosed
	delete(b.entries, baseURL)
	b.mu.Unlock()
	if recovered {
		b.notify(baseURL, BreakerClosed)
	}
}

// ReportFailure counts a consecutive failure; reaching the threshold opens
// the circuit and a failed half-open probe reopens it.
func (b *Breaker) ReportFailure(baseURL string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	entry := b.entries[baseURL]
	if entry == nil {
		entry = &breakerEntry{state: BreakerClosed}
		b.entries[baseURL] = entry
	}
	entry.failures++
	opened := false
	if entry.state == BreakerHalfOpen || entry.failures >= b.config.FailureThreshold {
		opened = entry.state != BreakerOpen
		entry.state = BreakerOpen
		entry.openedAt = clock.Now()
		entry.probing = false
	}
	b.mu.Unlock()
	if opened {
		b.notify(baseURL, BreakerOpen)
	}
}

// State returns the circuit state for a base URL.
func (b *Breaker) State(baseURL string) BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry := b.entries[baseURL]; entry != nil {
		return entry.state
	}
	return BreakerClosed
}

// notify runs the hook outside the breaker lock.
func (b *Breaker) notify(baseURL string, state BreakerState) {
	if b.onChange != nil {
		b.onChange(baseURL, state)
	}
}

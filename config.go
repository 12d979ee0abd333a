package taskgrid

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/viant/afs"

	"github.com/taskgrid/taskgrid/asset"
	"github.com/taskgrid/taskgrid/dispatch"
)

// Config is a serialisable representation of the orchestration core
// configuration. It can be populated from YAML or JSON, typically via
// LoadConfig which also expands ${env.KEY} references. The zero-value is
// useful, all nested fields inherit their package defaults.
type Config struct {
	Registry   RegistryConfig           `json:"registry" yaml:"registry"`
	Defaults   DefaultsConfig           `json:"defaults" yaml:"defaults"`
	Definition DefinitionConfig         `json:"definition" yaml:"definition"`
	Transport  dispatch.TransportConfig `json:"transport" yaml:"transport"`
	Breaker    dispatch.BreakerConfig   `json:"breaker" yaml:"breaker"`
	Backoff    dispatch.Backoff         `json:"backoff" yaml:"backoff"`
	Recorder   RecorderConfig           `json:"recorder" yaml:"recorder"`
	Workers    WorkersConfig            `json:"workers" yaml:"workers"`
}

// RegistryConfig selects the endpoint registry backend.
type RegistryConfig struct {
	// CatalogURL points at a static endpoint catalog document (any afs URL);
	// empty means endpoints are registered programmatically or discovered.
	CatalogURL string `json:"catalogURL,omitempty" yaml:"catalogURL,omitempty"`
}

// DefaultsConfig supplies dispatch budgets used when a definition does not
// declare its own.
type DefaultsConfig struct {
	TimeoutMs  int `json:"timeoutMs" yaml:"timeoutMs"`
	RetryCount int `json:"retryCount" yaml:"retryCount"`
}

// Timeout returns the default per-attempt timeout.
func (c DefaultsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DefinitionConfig controls the parsed definition cache.
type DefinitionConfig struct {
	TTLSec int `json:"ttlSec" yaml:"ttlSec"`
}

// TTL returns the definition cache expiry window.
func (c DefinitionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// RecorderConfig controls the analysis recorder.
type RecorderConfig struct {
	QueueSize int `json:"queueSize" yaml:"queueSize"`
	Workers   int `json:"workers" yaml:"workers"`
	// StoreURL selects a durable afs-backed record store; empty keeps records
	// in memory.
	StoreURL string `json:"storeURL,omitempty" yaml:"storeURL,omitempty"`
	// ProcessorIntervalMs sets the pending record promotion poll interval;
	// zero keeps the default when an index is attached.
	ProcessorIntervalMs int `json:"processorIntervalMs,omitempty" yaml:"processorIntervalMs,omitempty"`
}

// WorkersConfig controls the polling worker loops and dispatch concurrency.
type WorkersConfig struct {
	// Topics lists the engine topics the runtime polls; empty means the
	// runtime is used only through Dispatch/DispatchBatch.
	Topics []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	// Concurrency bounds how many tasks of one fetched batch are in flight at
	// once, and doubles as the InvokeBatch fan-out.
	Concurrency    int `json:"concurrency" yaml:"concurrency"`
	MaxFetch       int `json:"maxFetch" yaml:"maxFetch"`
	PollIntervalMs int `json:"pollIntervalMs" yaml:"pollIntervalMs"`
}

// PollInterval returns the idle wait between FetchAndLock rounds.
func (c WorkersConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DefaultConfig returns a Config populated with the package defaults. Callers
// may modify the returned struct before passing it to New via WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Defaults:   DefaultsConfig{TimeoutMs: 30_000, RetryCount: 2},
		Definition: DefinitionConfig{TTLSec: 600},
		Transport:  dispatch.DefaultTransportConfig(),
		Breaker:    dispatch.DefaultBreakerConfig(),
		Backoff:    dispatch.DefaultBackoff(),
		Recorder:   RecorderConfig{QueueSize: 1024, Workers: 2},
		Workers: WorkersConfig{
			Concurrency:    runtime.NumCPU() * 4,
			MaxFetch:       32,
			PollIntervalMs: 500,
		},
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Defaults.TimeoutMs <= 0 {
		return fmt.Errorf("defaults.timeoutMs must be > 0")
	}
	if c.Defaults.RetryCount < 0 {
		return fmt.Errorf("defaults.retryCount must be >= 0")
	}
	if c.Definition.TTLSec <= 0 {
		return fmt.Errorf("definition.ttlSec must be > 0")
	}
	if c.Recorder.QueueSize <= 0 {
		return fmt.Errorf("recorder.queueSize must be > 0")
	}
	if c.Recorder.Workers <= 0 {
		return fmt.Errorf("recorder.workers must be > 0")
	}
	if c.Workers.Concurrency <= 0 {
		return fmt.Errorf("workers.concurrency must be > 0")
	}
	if c.Workers.MaxFetch <= 0 {
		return fmt.Errorf("workers.maxFetch must be > 0")
	}
	return nil
}

// LoadConfig reads a configuration document from any afs URL (file, embed,
// mem, s3, gs, …), expands ${env.KEY} references and overlays it on top of
// DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	config := DefaultConfig()
	assets := asset.New(afs.New(), "")
	if err := assets.Load(ctx, URL, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %v, %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

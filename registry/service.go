// Package registry tracks service endpoints and resolves the target for a
// routing decision.  Static overrides registered by the operator take
// precedence over endpoints advertised through a Discovery source.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/model"
)

// Resolution sources.
const (
	SourceOverride  = "override"
	SourceDiscovery = "discovery"
)

// Resolution is the outcome of a successful endpoint lookup.
type Resolution struct {
	Endpoint *model.ServiceEndpoint
	Source   string
	// Fallback is set when the preferred endpoint was unhealthy and a healthy
	// alternative was selected instead.
	Fallback bool
	// Degraded is set when only unhealthy endpoints were available and the
	// best of them was returned anyway.
	Degraded bool
}

// Service keeps the endpoint override map and consults an optional Discovery
// source on lookups.  It is safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	overrides map[model.ServiceKey]*model.ServiceEndpoint
	health    map[string]bool
	discovery Discovery
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a registry service.
func New(options ...Option) *Service {
	s := &Service{
		overrides: make(map[model.ServiceKey]*model.ServiceEndpoint),
		health:    make(map[string]bool),
		logger:    logging.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Register adds or replaces the override endpoint for its service identity.
// Re-registering an existing identity is last-write-wins.
func (s *Service) Register(endpoint *model.ServiceEndpoint) error {
	if err := endpoint.Validate(); err != nil {
		return fmt.Errorf("failed to register endpoint: %w", err)
	}
	registered := endpoint.Clone()
	s.mu.Lock()
	s.overrides[registered.Key()] = registered
	s.mu.Unlock()
	s.logger.Debug("endpoint registered",
		zap.String("service", registered.Key().String()),
		zap.String("baseURL", registered.BaseURL))
	return nil
}

// Remove deletes the override for a service identity.
func (s *Service) Remove(key model.ServiceKey) {
	s.mu.Lock()
	delete(s.overrides, key)
	s.mu.Unlock()
}

// List returns a snapshot of all registered override endpoints with their
// effective health applied.
func (s *Service) List() []*model.ServiceEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.ServiceEndpoint, 0, len(s.overrides))
	for _, endpoint := range s.overrides {
		result = append(result, s.effectiveLocked(endpoint))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ServiceType != result[j].ServiceType {
			return result[i].ServiceType < result[j].ServiceType
		}
		if result[i].ServiceName != result[j].ServiceName {
			return result[i].ServiceName < result[j].ServiceName
		}
		return result[i].BaseURL < result[j].BaseURL
	})
	return result
}

// MarkUnhealthy flags every endpoint with the supplied base URL as unhealthy
// until MarkHealthy is called.
func (s *Service) MarkUnhealthy(baseURL string) {
	s.mu.Lock()
	s.health[baseURL] = false
	s.mu.Unlock()
	s.logger.Warn("endpoint marked unhealthy", zap.String("baseURL", baseURL))
}

// MarkHealthy clears an unhealthy flag for the supplied base URL.
func (s *Service) MarkHealthy(baseURL string) {
	s.mu.Lock()
	s.health[baseURL] = true
	s.mu.Unlock()
	s.logger.Info("endpoint marked healthy", zap.String("baseURL", baseURL))
}

// Resolve returns the endpoint for a service identity. Overrides win over
// discovery; an unhealthy preferred endpoint is replaced by the best healthy
// alternative when one exists, otherwise the unhealthy endpoint is returned
// with Degraded set. When nothing is known a NotFoundError is returned.
func (s *Service) Resolve(ctx context.Context, key model.ServiceKey) (*Resolution, error) {
	s.mu.RLock()
	override := s.overrides[key]
	s.mu.RUnlock()

	if override != nil && s.isHealthy(override) {
		s.metrics.RegistryLookup(ctx, metrics.LookupHit)
		return &Resolution{Endpoint: s.effective(override), Source: SourceOverride}, nil
	}

	candidates, err := s.discover(ctx, key)
	if err != nil {
		if override == nil {
			s.metrics.RegistryLookup(ctx, metrics.LookupMiss)
			return nil, fmt.Errorf("failed to discover endpoints for %v: %w", key, err)
		}
		s.logger.Warn("discovery failed, falling back to unhealthy override",
			zap.String("service", key.String()), zap.Error(err))
	}

	healthy := make([]*model.ServiceEndpoint, 0, len(candidates))
	for _, candidate := range candidates {
		if s.isHealthy(candidate) {
			healthy = append(healthy, candidate)
		}
	}

	if best := pickBest(healthy); best != nil {
		if override != nil {
			s.metrics.RegistryLookup(ctx, metrics.LookupFallback)
			s.logger.Info("unhealthy override replaced by discovered endpoint",
				zap.String("service", key.String()),
				zap.String("baseURL", best.BaseURL))
			return &Resolution{Endpoint: s.effective(best), Source: SourceDiscovery, Fallback: true}, nil
		}
		s.metrics.RegistryLookup(ctx, metrics.LookupHit)
		return &Resolution{Endpoint: s.effective(best), Source: SourceDiscovery}, nil
	}

	if override != nil {
		s.metrics.RegistryLookup(ctx, metrics.LookupFallback)
		return &Resolution{Endpoint: s.effective(override), Source: SourceOverride, Degraded: true}, nil
	}
	if best := pickBest(candidates); best != nil {
		s.metrics.RegistryLookup(ctx, metrics.LookupFallback)
		return &Resolution{Endpoint: s.effective(best), Source: SourceDiscovery, Degraded: true}, nil
	}

	s.metrics.RegistryLookup(ctx, metrics.LookupMiss)
	return nil, &NotFoundError{Key: key}
}

func (s *Service) discover(ctx context.Context, key model.ServiceKey) ([]*model.ServiceEndpoint, error) {
	if s.discovery == nil {
		return nil, nil
	}
	discovered, err := s.discovery.Discover(ctx, key)
	if err != nil {
		return nil, err
	}
	result := make([]*model.ServiceEndpoint, 0, len(discovered))
	for _, candidate := range discovered {
		if candidate == nil || candidate.Key() != key {
			continue
		}
		if err := candidate.Validate(); err != nil {
			s.logger.Warn("skipping invalid discovered endpoint", zap.Error(err))
			continue
		}
		result = append(result, candidate)
	}
	return result, nil
}

// isHealthy applies runtime health flags on top of the advertised state.
func (s *Service) isHealthy(endpoint *model.ServiceEndpoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthLocked(endpoint)
}

// healthLocked requires the caller to hold at least a read lock.
func (s *Service) healthLocked(endpoint *model.ServiceEndpoint) bool {
	if flagged, ok := s.health[endpoint.BaseURL]; ok {
		return flagged
	}
	return endpoint.Healthy
}

// effective returns a copy with the runtime health flag applied.
func (s *Service) effective(endpoint *model.ServiceEndpoint) *model.ServiceEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveLocked(endpoint)
}

// effectiveLocked requires the caller to hold at least a read lock.
func (s *Service) effectiveLocked(endpoint *model.ServiceEndpoint) *model.ServiceEndpoint {
	result := endpoint.Clone()
	result.Healthy = s.healthLocked(endpoint)
	return result
}

// pickBest selects the most recently seen candidate; ties break on the
// lexicographically smallest base URL so resolution stays deterministic.
func pickBest(candidates []*model.ServiceEndpoint) *model.ServiceEndpoint {
	var best *model.ServiceEndpoint
	for _, candidate := range candidates {
		if best == nil {
			best = candidate
			continue
		}
		if candidate.LastSeen.After(best.LastSeen) {
			best = candidate
			continue
		}
		if candidate.LastSeen.Equal(best.LastSeen) && candidate.BaseURL < best.BaseURL {
			best = candidate
		}
	}
	return best
}

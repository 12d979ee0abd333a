package definition

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/cache"
	"github.com/taskgrid/taskgrid/internal/clock"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
)

// DefaultTTL bounds how long a parsed catalog is served before the source is
// consulted again.
const DefaultTTL = 10 * time.Minute

// Source supplies raw definition documents, typically the process engine
// adapter.
type Source interface {
	DefinitionXML(ctx context.Context, definitionID string) (string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, definitionID string) (string, error)

// DefinitionXML implements Source.
func (f SourceFunc) DefinitionXML(ctx context.Context, definitionID string) (string, error) {
	return f(ctx, definitionID)
}

// Service caches parsed definition catalogs per definition id. Concurrent
// lookups of an uncached definition share a single fetch and parse; fetch
// failures are not cached so the next lookup retries.
type Service struct {
	source   Source
	catalogs *cache.Cache[string, *Catalog]
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a definition service backed by source.
func New(source Source, options ...Option) *Service {
	s := &Service{
		source: source,
		ttl:    DefaultTTL,
		logger: logging.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	s.catalogs = cache.New[string, *Catalog](s.ttl)
	return s
}

// Catalog returns the activity catalog for a definition, fetching and parsing
// it on a cold or expired entry.
func (s *Service) Catalog(ctx context.Context, definitionID string) (*Catalog, error) {
	if definitionID == "" {
		return nil, &MetadataError{Reason: "definitionId was empty"}
	}
	catalog, cached, err := s.catalogs.Load(ctx, definitionID, s.fetch)
	if err != nil {
		return nil, err
	}
	s.metrics.CacheAccess(ctx, cached)
	return catalog, nil
}

// Routing returns the routing metadata for one activity of a definition.
func (s *Service) Routing(ctx context.Context, definitionID, activityID string) (*Activity, error) {
	catalog, err := s.Catalog(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	activity, ok := catalog.Lookup(activityID)
	if !ok {
		return nil, &MetadataError{
			DefinitionID: definitionID,
			ActivityID:   activityID,
			Reason:       "activity not found",
		}
	}
	return activity, nil
}

// Refresh drops any cached catalog for the definition and loads it again.
func (s *Service) Refresh(ctx context.Context, definitionID string) (*Catalog, error) {
	s.catalogs.Evict(definitionID)
	return s.Catalog(ctx, definitionID)
}

// Invalidate drops the cached catalog for a definition.
func (s *Service) Invalidate(definitionID string) {
	s.catalogs.Evict(definitionID)
}

func (s *Service) fetch(ctx context.Context, definitionID string) (*Catalog, error) {
	started := clock.Now()
	document, err := s.source.DefinitionXML(ctx, definitionID)
	if err != nil {
		return nil, &FetchError{DefinitionID: definitionID, Err: err}
	}
	catalog, err := ParseCatalog(definitionID, []byte(document))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("definition parsed",
		zap.String("definitionId", definitionID),
		zap.Int("activities", catalog.Len()),
		zap.Duration("elapsed", clock.Since(started)))
	return catalog, nil
}

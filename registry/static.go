package registry

import (
	"context"
	"fmt"

	"github.com/taskgrid/taskgrid/asset"
	"github.com/taskgrid/taskgrid/internal/clock"
	"github.com/taskgrid/taskgrid/model"
)

// Catalog is the on-disk shape of a static endpoint catalog.
type Catalog struct {
	Endpoints []*model.ServiceEndpoint `json:"endpoints" yaml:"endpoints"`
}

// LoadStatic reads an endpoint catalog document and registers every entry.
// Catalog order is preserved, so duplicated identities are last-write-wins.
func (s *Service) LoadStatic(ctx context.Context, assets *asset.Service, URI string) error {
	var catalog Catalog
	if err := assets.Load(ctx, URI, &catalog); err != nil {
		return fmt.Errorf("failed to load endpoint catalog: %w", err)
	}
	for i, endpoint := range catalog.Endpoints {
		if endpoint == nil {
			continue
		}
		if endpoint.LastSeen.IsZero() {
			endpoint.LastSeen = clock.Now()
		}
		if err := s.Register(endpoint); err != nil {
			return fmt.Errorf("invalid catalog entry %v in %v: %w", i, URI, err)
		}
	}
	return nil
}

package registry

import (
	"context"

	"github.com/taskgrid/taskgrid/model"
)

// Discovery supplies endpoint candidates for a service identity from an
// external source such as a control plane or service mesh.
type Discovery interface {
	// Discover returns all currently advertised endpoints for key. An empty
	// result is not an error.
	Discover(ctx context.Context, key model.ServiceKey) ([]*model.ServiceEndpoint, error)
}

// DiscoveryFunc adapts a function to the Discovery interface.
type DiscoveryFunc func(ctx context.Context, key model.ServiceKey) ([]*model.ServiceEndpoint, error)

// Discover implements Discovery.
func (f DiscoveryFunc) Discover(ctx context.Context, key model.ServiceKey) ([]*model.ServiceEndpoint, error) {
	return f(ctx, key)
}

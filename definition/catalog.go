// Package definition fetches process definitions, extracts per-activity
// routing metadata and caches the result per definition so concurrent lookups
// share a single fetch and parse.
package definition

import (
	"github.com/taskgrid/taskgrid/model"
)

// Activity holds the routing metadata of a single definition activity.
type Activity struct {
	ID            string                  `json:"id" yaml:"id"`
	Name          string                  `json:"name,omitempty" yaml:"name,omitempty"`
	Documentation string                  `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Properties    *model.RoutingProperties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Catalog indexes every activity of one process definition.
type Catalog struct {
	DefinitionID string               `json:"definitionId" yaml:"definitionId"`
	Activities   map[string]*Activity `json:"activities" yaml:"activities"`
}

// Lookup returns the activity with the supplied id.
func (c *Catalog) Lookup(activityID string) (*Activity, bool) {
	if c == nil {
		return nil, false
	}
	activity, ok := c.Activities[activityID]
	return activity, ok
}

// Len returns the number of catalogued activities.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Activities)
}

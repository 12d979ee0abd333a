// Package engine defines the process engine contract the orchestration core
// consumes: leasing external tasks, reporting their terminal outcome and
// reading raw definition documents.
package engine

import (
	"context"

	"github.com/taskgrid/taskgrid/model"
)

// Adapter is the process engine surface the runtime drives. FetchAndLock
// leases up to maxTasks external tasks waiting on a topic; Complete and Fail
// report terminal outcomes back to the engine; DefinitionXML reads the raw
// definition document so routing metadata can be parsed. Implementations must
// be safe for concurrent use, worker loops for several topics share one
// adapter.
type Adapter interface {
	FetchAndLock(ctx context.Context, topic string, maxTasks int) ([]*model.TaskDescriptor, error)
	Complete(ctx context.Context, taskID string, variables model.Variables) error
	Fail(ctx context.Context, taskID string, detail string, retriesLeft int) error
	DefinitionXML(ctx context.Context, definitionID string) (string, error)
}

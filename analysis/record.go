package analysis

import (
	"github.com/taskgrid/taskgrid/model"
)

// NewRecord projects a task and its dispatch outcome into an analysis record.
// The endpoint and result may be nil when routing failed before any network
// call; such records carry a failure outcome so terminal states always leave
// a trace. The recorder assigns id, sequence and status on enqueue.
func NewRecord(task *model.TaskDescriptor, endpoint *model.ServiceEndpoint, result *model.DispatchResult, threadID string, tags ...string) *model.AnalysisRecord {
	record := &model.AnalysisRecord{
		ThreadID: threadID,
		Outcome:  model.DispatchFailed,
	}
	if task != nil {
		record.TaskID = task.TaskID
		record.ActivityID = task.ActivityID
		record.ProcessInstanceID = task.ProcessInstanceID
		record.Input = task.Variables.Clone()
	}
	if endpoint != nil {
		record.ServiceType = endpoint.ServiceType
		record.ServiceName = endpoint.ServiceName
		record.BaseURL = endpoint.BaseURL
	}
	if result != nil {
		record.Output = result.Result
		record.Outcome = result.Status
		record.Error = result.ErrorDetail
		record.Attempts = result.Attempts
		record.LatencyMs = result.LatencyMs
		if record.BaseURL == "" {
			record.BaseURL = result.BaseURL
		}
	}
	for _, tag := range tags {
		record.Tag(tag)
	}
	return record
}

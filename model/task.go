package model

import (
	"fmt"
	"time"
)

// TaskDescriptor represents a single external task fetched from a process
// engine and awaiting routing.
type TaskDescriptor struct {
	TaskID            string    `json:"taskId" yaml:"taskId"`
	ActivityID        string    `json:"activityId" yaml:"activityId"`
	ActivityName      string    `json:"activityName,omitempty" yaml:"activityName,omitempty"`
	ProcessInstanceID string    `json:"processInstanceId,omitempty" yaml:"processInstanceId,omitempty"`
	DefinitionID      string    `json:"definitionId" yaml:"definitionId"`
	Topic             string    `json:"topic,omitempty" yaml:"topic,omitempty"`
	Variables         Variables `json:"variables,omitempty" yaml:"variables,omitempty"`
	Documentation     string    `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Priority          int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Retries           *int      `json:"retries,omitempty" yaml:"retries,omitempty"`
	CreatedAt         time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Name returns the human readable task name, falling back to the activity
// identifier when a definition did not carry one.
func (t *TaskDescriptor) Name() string {
	if t.ActivityName != "" {
		return t.ActivityName
	}
	return t.ActivityID
}

// Validate checks the descriptor carries the identifiers routing depends on.
func (t *TaskDescriptor) Validate() error {
	if t == nil {
		return fmt.Errorf("task was empty")
	}
	if t.TaskID == "" {
		return fmt.Errorf("taskId was empty")
	}
	if t.ActivityID == "" {
		return fmt.Errorf("activityId was empty, task: %v", t.TaskID)
	}
	if t.DefinitionID == "" {
		return fmt.Errorf("definitionId was empty, task: %v", t.TaskID)
	}
	return nil
}

// Clone returns a copy with its own variables collection.
func (t *TaskDescriptor) Clone() *TaskDescriptor {
	if t == nil {
		return nil
	}
	result := *t
	result.Variables = t.Variables.Clone()
	if t.Retries != nil {
		retries := *t.Retries
		result.Retries = &retries
	}
	return &result
}

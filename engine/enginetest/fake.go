// Package enginetest provides an in-memory engine adapter for tests and
// examples: scripted topics and definitions, journals of reported outcomes
// and a definition fetch counter for cache coalescing assertions.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/taskgrid/taskgrid/engine"
	"github.com/taskgrid/taskgrid/model"
)

// Completion is one recorded Complete call.
type Completion struct {
	TaskID    string
	Variables model.Variables
}

// Failure is one recorded Fail call.
type Failure struct {
	TaskID      string
	Detail      string
	RetriesLeft int
}

// Fake is a scriptable in-memory engine. Enqueue stages tasks per topic,
// FetchAndLock pops them in order.
type Fake struct {
	mu                sync.Mutex
	topics            map[string][]*model.TaskDescriptor
	definitions       map[string]string
	completions       []Completion
	failures          []Failure
	definitionFetches int64
	definitionErr     error
	fetchErr          error
}

// Ensure Fake implements the engine adapter.
var _ engine.Adapter = (*Fake)(nil)

// New creates an empty fake engine.
func New() *Fake {
	return &Fake{
		topics:      make(map[string][]*model.TaskDescriptor),
		definitions: make(map[string]string),
	}
}

// AddDefinition stages a definition document.
func (f *Fake) AddDefinition(definitionID, document string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.definitions[definitionID] = document
}

// Enqueue stages tasks on a topic in fetch order.
func (f *Fake) Enqueue(topic string, tasks ...*model.TaskDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics[topic] = append(f.topics[topic], tasks...)
}

// FailFetch makes every FetchAndLock return err until cleared with nil.
func (f *Fake) FailFetch(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// FailDefinitions makes every DefinitionXML return err until cleared with
// nil.
func (f *Fake) FailDefinitions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.definitionErr = err
}

// FetchAndLock pops up to maxTasks staged tasks from the topic.
func (f *Fake) FetchAndLock(_ context.Context, topic string, maxTasks int) ([]*model.TaskDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	staged := f.topics[topic]
	if len(staged) == 0 {
		return nil, nil
	}
	if maxTasks <= 0 || maxTasks > len(staged) {
		maxTasks = len(staged)
	}
	leased := staged[:maxTasks]
	f.topics[topic] = staged[maxTasks:]
	return leased, nil
}

// Complete journals a successful outcome.
func (f *Fake) Complete(_ context.Context, taskID string, variables model.Variables) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, Completion{TaskID: taskID, Variables: variables.Clone()})
	return nil
}

// Fail journals a failed outcome.
func (f *Fake) Fail(_ context.Context, taskID string, detail string, retriesLeft int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, Failure{TaskID: taskID, Detail: detail, RetriesLeft: retriesLeft})
	return nil
}

// DefinitionXML returns a staged definition document and counts the fetch.
func (f *Fake) DefinitionXML(_ context.Context, definitionID string) (string, error) {
	atomic.AddInt64(&f.definitionFetches, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.definitionErr != nil {
		return "", f.definitionErr
	}
	document, ok := f.definitions[definitionID]
	if !ok {
		return "", fmt.Errorf("definition %v not found", definitionID)
	}
	return document, nil
}

// DefinitionFetches reports how many times DefinitionXML was called.
func (f *Fake) DefinitionFetches() int64 {
	return atomic.LoadInt64(&f.definitionFetches)
}

// Pending reports how many staged tasks remain on a topic.
func (f *Fake) Pending(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics[topic])
}

// Completions returns a copy of the completion journal.
func (f *Fake) Completions() []Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Completion(nil), f.completions...)
}

// Failures returns a copy of the failure journal.
func (f *Fake) Failures() []Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Failure(nil), f.failures...)
}

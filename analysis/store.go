// Package analysis captures one durable record per terminal task dispatch.
// Records are queued without blocking the dispatch path and persisted by
// background workers; a processor later promotes pending records into a
// secondary index. Persistence is best effort, a crash may lose queued
// records.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/taskgrid/taskgrid/model"
)

// Store errors shared by implementations. Sentinel variables let callers
// detect conditions via errors.Is instead of string comparisons.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("analysis: record not found")

	// ErrInvalidID indicates an empty or otherwise unusable record id.
	ErrInvalidID = errors.New("analysis: invalid record id")

	// ErrNilRecord is returned when the caller attempts to persist nil.
	ErrNilRecord = errors.New("analysis: nil record")
)

// Query filters stored records; zero fields match everything. Tags must all
// be present on a matching record. The time window covers CreatedAt with an
// inclusive From and exclusive To bound.
type Query struct {
	ProcessInstanceID string
	ThreadID          string
	Status            model.RecordStatus
	Tags              []string
	From              time.Time
	To                time.Time
}

// Matches reports whether a record satisfies the query.
func (q *Query) Matches(record *model.AnalysisRecord) bool {
	if record == nil {
		return false
	}
	if q == nil {
		return true
	}
	if q.ProcessInstanceID != "" && record.ProcessInstanceID != q.ProcessInstanceID {
		return false
	}
	if q.ThreadID != "" && record.ThreadID != q.ThreadID {
		return false
	}
	if q.Status != "" && record.Status != q.Status {
		return false
	}
	for _, tag := range q.Tags {
		if !record.HasTag(tag) {
			return false
		}
	}
	if !q.From.IsZero() && record.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !record.CreatedAt.Before(q.To) {
		return false
	}
	return true
}

// Store persists analysis records. Save is an upsert keyed by record id,
// Update requires the record to exist. Query returns matches in insertion
// (Seq) order so per-process and per-thread history replays deterministically.
type Store interface {
	Save(ctx context.Context, record *model.AnalysisRecord) error
	Update(ctx context.Context, record *model.AnalysisRecord) error
	Load(ctx context.Context, id string) (*model.AnalysisRecord, error)
	Query(ctx context.Context, query *Query) ([]*model.AnalysisRecord, error)
}

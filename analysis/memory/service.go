// Package memory provides an in-memory analysis record store, the default
// for embedded runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/taskgrid/taskgrid/analysis"
	"github.com/taskgrid/taskgrid/model"
)

// Service keeps records in insertion order with an id index. All methods work
// with copies so callers and workers never share mutable state.
type Service struct {
	mux     sync.RWMutex
	records []*model.AnalysisRecord
	byID    map[string]int
}

var _ analysis.Store = (*Service)(nil)

// New creates an empty store.
func New() *Service {
	return &Service{byID: make(map[string]int)}
}

// Save inserts or replaces a record by id.
func (s *Service) Save(_ context.Context, record *model.AnalysisRecord) error {
	if record == nil {
		return analysis.ErrNilRecord
	}
	if record.ID == "" {
		return analysis.ErrInvalidID
	}
	stored := record.Clone()
	s.mux.Lock()
	defer s.mux.Unlock()
	if index, ok := s.byID[stored.ID]; ok {
		s.records[index] = stored
		return nil
	}
	s.byID[stored.ID] = len(s.records)
	s.records = append(s.records, stored)
	return nil
}

// Update replaces an existing record.
func (s *Service) Update(_ context.Context, record *model.AnalysisRecord) error {
	if record == nil {
		return analysis.ErrNilRecord
	}
	if record.ID == "" {
		return analysis.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	index, ok := s.byID[record.ID]
	if !ok {
		return analysis.ErrNotFound
	}
	s.records[index] = record.Clone()
	return nil
}

// Load returns a copy of the record with the supplied id.
func (s *Service) Load(_ context.Context, id string) (*model.AnalysisRecord, error) {
	if id == "" {
		return nil, analysis.ErrInvalidID
	}
	s.mux.RLock()
	defer s.mux.RUnlock()
	index, ok := s.byID[id]
	if !ok {
		return nil, analysis.ErrNotFound
	}
	return s.records[index].Clone(), nil
}

// Query returns matching records in creation (Seq) order.
func (s *Service) Query(_ context.Context, query *analysis.Query) ([]*model.AnalysisRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	var result []*model.AnalysisRecord
	for _, record := range s.records {
		if query.Matches(record) {
			result = append(result, record.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

// Count returns how many records are stored.
func (s *Service) Count() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.records)
}

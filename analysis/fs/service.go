// Package fs provides a filesystem analysis record store backed by afs, so
// records survive restarts and any afs scheme (file, mem, s3) can host them.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/taskgrid/taskgrid/analysis"
	"github.com/taskgrid/taskgrid/model"
)

// Service stores one JSON document per record under
// {base}/{processInstanceID}/{seq}-{id}.json.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
	paths   map[string]string
}

var _ analysis.Store = (*Service)(nil)

// New creates a store rooted at baseURL, creating the directory when absent.
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	ctx := context.Background()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create analysis base directory: %w", err)
		}
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	return &Service{
		baseURL: baseURL,
		fs:      fs,
		paths:   make(map[string]string),
	}, nil
}

// Save persists a record, replacing any previous document with the same id.
func (s *Service) Save(ctx context.Context, record *model.AnalysisRecord) error {
	if record == nil {
		return analysis.ErrNilRecord
	}
	if record.ID == "" {
		return analysis.ErrInvalidID
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %v: %w", record.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	URL, ok := s.paths[record.ID]
	if !ok {
		URL = s.recordURL(record)
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save record to %v: %w", URL, err)
	}
	s.paths[record.ID] = URL
	return nil
}

// Update replaces an existing record document.
func (s *Service) Update(ctx context.Context, record *model.AnalysisRecord) error {
	if record == nil {
		return analysis.ErrNilRecord
	}
	if record.ID == "" {
		return analysis.ErrInvalidID
	}
	URL, err := s.lookupURL(ctx, record.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %v: %w", record.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to update record at %v: %w", URL, err)
	}
	return nil
}

// Load reads the record with the supplied id.
func (s *Service) Load(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	if id == "" {
		return nil, analysis.ErrInvalidID
	}
	URL, err := s.lookupURL(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read record at %v: %w", URL, err)
	}
	record := &model.AnalysisRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record at %v: %w", URL, err)
	}
	return record, nil
}

// Query lists every stored document and returns matches in creation (Seq)
// order. Documents that fail to read or decode are skipped so one corrupted
// file cannot hide the rest.
func (s *Service) Query(ctx context.Context, query *analysis.Query) ([]*model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list records under %v: %w", s.baseURL, err)
	}
	var result []*model.AnalysisRecord
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		record := &model.AnalysisRecord{}
		if err := json.Unmarshal(data, record); err != nil {
			continue
		}
		if query.Matches(record) {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

// lookupURL resolves a record id to its document URL, scanning the base
// directory when the id was stored by a previous run.
func (s *Service) lookupURL(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	URL, ok := s.paths[id]
	s.mu.RUnlock()
	if ok {
		return URL, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return "", fmt.Errorf("failed to list records under %v: %w", s.baseURL, err)
	}
	suffix := fmt.Sprintf("-%s.json", id)
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		if strings.HasSuffix(object.Name(), suffix) {
			s.paths[id] = object.URL()
			return object.URL(), nil
		}
	}
	return "", analysis.ErrNotFound
}

// recordURL lays out one document per record, grouped by process instance.
func (s *Service) recordURL(record *model.AnalysisRecord) string {
	name := fmt.Sprintf("%08d-%s.json", record.Seq, record.ID)
	return url.Join(s.baseURL, path.Join(record.ProcessInstanceID, name))
}

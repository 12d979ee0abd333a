package analysis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/clock"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/model"
)

// Index receives processed records, typically a search or similarity store.
// Add must tolerate repeated delivery of the same record: a record whose
// status update failed is delivered again on the next pass.
type Index interface {
	Add(ctx context.Context, record *model.AnalysisRecord) error
}

// IndexFunc adapts a function to the Index interface.
type IndexFunc func(ctx context.Context, record *model.AnalysisRecord) error

// Add implements Index.
func (f IndexFunc) Add(ctx context.Context, record *model.AnalysisRecord) error {
	return f(ctx, record)
}

// ProcessorConfig controls the pending record sweep.
type ProcessorConfig struct {
	// PollInterval is how often pending records are looked up.
	PollInterval time.Duration
	// BatchSize bounds how many records one pass promotes.
	BatchSize int
}

// DefaultProcessorConfig returns the sweep defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval: time.Second,
		BatchSize:    32,
	}
}

// Processor promotes pending analysis records into the index and marks them
// processed. A record that fails to index stays pending and is retried on a
// later pass; already processed records are never delivered again.
type Processor struct {
	store      Store
	index      Index
	config     ProcessorConfig
	logger     *zap.Logger
	processed  uint64
	shutdownCh chan struct{}
}

// NewProcessor creates a processor; logger may be nil.
func NewProcessor(store Store, index Index, config ProcessorConfig, logger *zap.Logger) *Processor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProcessorConfig().BatchSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Processor{
		store:      store,
		index:      index,
		config:     config,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Start runs the sweep loop until the context ends or Shutdown is called.
func (p *Processor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.shutdownCh:
			return nil
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("analysis sweep failed", zap.Error(err))
			}
		}
	}
}

// Shutdown stops the sweep loop.
func (p *Processor) Shutdown() {
	select {
	case <-p.shutdownCh:
	default:
		close(p.shutdownCh)
	}
}

// Processed returns how many records were promoted since start.
func (p *Processor) Processed() uint64 {
	return atomic.LoadUint64(&p.processed)
}

// ProcessPending promotes one batch of pending records and returns how many
// were processed.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	pending, err := p.store.Query(ctx, &Query{Status: model.RecordPending})
	if err != nil {
		return 0, fmt.Errorf("failed to query pending records: %w", err)
	}
	if len(pending) > p.config.BatchSize {
		pending = pending[:p.config.BatchSize]
	}
	promoted := 0
	for _, record := range pending {
		if record.Status == model.RecordProcessed {
			continue
		}
		if err := p.index.Add(ctx, record); err != nil {
			p.logger.Warn("failed to index analysis record, leaving pending",
				zap.String("id", record.ID),
				zap.Error(err))
			continue
		}
		processedAt := clock.Now()
		record.Status = model.RecordProcessed
		record.ProcessedAt = &processedAt
		if err := p.store.Update(ctx, record); err != nil {
			p.logger.Warn("failed to mark analysis record processed",
				zap.String("id", record.ID),
				zap.Error(err))
			continue
		}
		promoted++
		atomic.AddUint64(&p.processed, 1)
	}
	return promoted, nil
}

package analysis

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/clock"
	"github.com/taskgrid/taskgrid/internal/idgen"
	"github.com/taskgrid/taskgrid/logging"
	"github.com/taskgrid/taskgrid/metrics"
	"github.com/taskgrid/taskgrid/model"
)

// Recorder queue defaults.
const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2
)

// Recorder accepts analysis records without ever blocking the dispatch path.
// Records land in a bounded queue; when it is full the oldest buffered record
// is dropped to admit the newest. Background workers persist queued records
// through the store.
type Recorder struct {
	store   Store
	queue   chan *model.AnalysisRecord
	workers int
	seq     uint64
	closed  int32
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// RecorderOption customises the recorder.
type RecorderOption func(*Recorder)

// WithQueueSize bounds how many records may wait for persistence.
func WithQueueSize(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.queue = make(chan *model.AnalysisRecord, size)
		}
	}
}

// WithWorkers sets how many goroutines persist queued records.
func WithWorkers(workers int) RecorderOption {
	return func(r *Recorder) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches the counter tracker.
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a recorder persisting into store; Start launches its
// workers.
func NewRecorder(store Store, options ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		workers: DefaultWorkers,
		stopCh:  make(chan struct{}),
		logger:  logging.Nop(),
	}
	for _, option := range options {
		option(r)
	}
	if r.queue == nil {
		r.queue = make(chan *model.AnalysisRecord, DefaultQueueSize)
	}
	return r
}

// Start launches the persistence workers.
func (r *Recorder) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
}

// Record assigns identity and sequence to the record and enqueues it. The
// call never blocks: a full queue evicts its oldest buffered record. The
// record id is returned, empty when the recorder is already shut down.
func (r *Recorder) Record(record *model.AnalysisRecord) string {
	if record == nil {
		return ""
	}
	if atomic.LoadInt32(&r.closed) == 1 {
		r.metrics.RecordDropped(context.Background())
		return ""
	}
	if record.ID == "" {
		record.ID = idgen.New()
	}
	record.Seq = atomic.AddUint64(&r.seq, 1)
	record.Status = model.RecordPending
	if record.CreatedAt.IsZero() {
		record.CreatedAt = clock.Now()
	}
	for {
		select {
		case r.queue <- record:
			r.metrics.RecordWritten(context.Background())
			return record.ID
		default:
		}
		select {
		case dropped := <-r.queue:
			r.metrics.RecordDropped(context.Background())
			r.logger.Warn("analysis record dropped under backpressure",
				zap.String("id", dropped.ID),
				zap.Uint64("seq", dropped.Seq))
		default:
		}
	}
}

// Pending returns the number of records waiting for persistence.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

// Shutdown stops accepting records, drains the queue and waits for the
// workers until ctx expires.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	close(r.stopCh)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case record := <-r.queue:
			r.persist(ctx, record)
		case <-r.stopCh:
			for {
				select {
				case record := <-r.queue:
					r.persist(ctx, record)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recorder) persist(ctx context.Context, record *model.AnalysisRecord) {
	if err := r.store.Save(ctx, record); err != nil {
		r.logger.Error("failed to persist analysis record",
			zap.String("id", record.ID),
			zap.String("taskId", record.TaskID),
			zap.Error(err))
	}
}

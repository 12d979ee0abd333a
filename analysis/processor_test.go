package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/model"
)

func savePending(t *testing.T, store Store, count int) {
	t.Helper()
	for i := 1; i <= count; i++ {
		record := &model.AnalysisRecord{
			ID:     fmt.Sprintf("rec-%d", i),
			Seq:    uint64(i),
			TaskID: fmt.Sprintf("task-%d", i),
			Status: model.RecordPending,
		}
		require.NoError(t, store.Save(context.Background(), record))
	}
}

func TestProcessor_PromotesPendingRecords(t *testing.T) {
	store := newCapturingStore()
	savePending(t, store, 3)

	var indexed []string
	index := IndexFunc(func(_ context.Context, record *model.AnalysisRecord) error {
		indexed = append(indexed, record.ID)
		return nil
	})
	processor := NewProcessor(store, index, ProcessorConfig{}, nil)

	ctx := context.Background()
	promoted, err := processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, promoted)
	assert.Equal(t, []string{"rec-1", "rec-2", "rec-3"}, indexed)

	processed, err := store.Query(ctx, &Query{Status: model.RecordProcessed})
	require.NoError(t, err)
	require.Len(t, processed, 3)
	for _, record := range processed {
		require.NotNil(t, record.ProcessedAt)
	}

	// Nothing is delivered twice once processed.
	promoted, err = processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, promoted)
	assert.Len(t, indexed, 3)
	assert.Equal(t, uint64(3), processor.Processed())
}

func TestProcessor_FailedIndexStaysPending(t *testing.T) {
	store := newCapturingStore()
	savePending(t, store, 3)

	failing := map[string]bool{"rec-2": true}
	index := IndexFunc(func(_ context.Context, record *model.AnalysisRecord) error {
		if failing[record.ID] {
			return errors.New("index unavailable")
		}
		return nil
	})
	processor := NewProcessor(store, index, ProcessorConfig{}, nil)

	ctx := context.Background()
	promoted, err := processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	pending, err := store.Query(ctx, &Query{Status: model.RecordPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rec-2", pending[0].ID)

	// Once the index recovers the record is promoted on the next pass.
	delete(failing, "rec-2")
	promoted, err = processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	pending, err = store.Query(ctx, &Query{Status: model.RecordPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessor_BatchSizeBoundsOnePass(t *testing.T) {
	store := newCapturingStore()
	savePending(t, store, 5)

	index := IndexFunc(func(_ context.Context, _ *model.AnalysisRecord) error { return nil })
	processor := NewProcessor(store, index, ProcessorConfig{BatchSize: 2}, nil)

	ctx := context.Background()
	for _, expect := range []int{2, 2, 1, 0} {
		promoted, err := processor.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, expect, promoted)
	}
}

func TestProcessor_StartSweepsUntilShutdown(t *testing.T) {
	store := newCapturingStore()
	savePending(t, store, 1)

	index := IndexFunc(func(_ context.Context, _ *model.AnalysisRecord) error { return nil })
	processor := NewProcessor(store, index, ProcessorConfig{PollInterval: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() { done <- processor.Start(context.Background()) }()

	assert.Eventually(t, func() bool { return processor.Processed() == 1 }, time.Second, 10*time.Millisecond)

	processor.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/analysis"
	"github.com/taskgrid/taskgrid/model"
)

func TestService_SaveAndLoadRoundTrip(t *testing.T) {
	svc, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	record := &model.AnalysisRecord{
		ID:                "rec-1",
		Seq:               1,
		TaskID:            "task-1",
		ActivityID:        "score-document",
		ProcessInstanceID: "proc-1",
		ServiceType:       "Score",
		ServiceName:       "scorer",
		BaseURL:           "http://scorer:9000",
		Output:            map[string]interface{}{"score": 0.91, "label": "ok"},
		Outcome:           model.DispatchSucceeded,
		Attempts:          2,
		LatencyMs:         120,
		Tags:              []string{"pipeline"},
		Status:            model.RecordPending,
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Save(ctx, record))

	loaded, err := svc.Load(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestService_UpdateRequiresExisting(t *testing.T) {
	svc, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ghost := &model.AnalysisRecord{ID: "ghost", Seq: 9}
	assert.ErrorIs(t, svc.Update(ctx, ghost), analysis.ErrNotFound)

	record := &model.AnalysisRecord{
		ID:                "rec-1",
		Seq:               1,
		ProcessInstanceID: "proc-1",
		Status:            model.RecordPending,
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Save(ctx, record))

	processedAt := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	record.Status = model.RecordProcessed
	record.ProcessedAt = &processedAt
	require.NoError(t, svc.Update(ctx, record))

	loaded, err := svc.Load(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordProcessed, loaded.Status)
	require.NotNil(t, loaded.ProcessedAt)
	assert.True(t, processedAt.Equal(*loaded.ProcessedAt))
}

func TestService_QueryFiltersInSeqOrder(t *testing.T) {
	svc, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Saved out of Seq order and across process instances.
	for _, record := range []*model.AnalysisRecord{
		{ID: "rec-2", Seq: 2, ProcessInstanceID: "proc-1", Status: model.RecordProcessed, CreatedAt: base.Add(time.Minute)},
		{ID: "rec-3", Seq: 3, ProcessInstanceID: "proc-2", Status: model.RecordPending, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "rec-1", Seq: 1, ProcessInstanceID: "proc-1", Status: model.RecordPending, CreatedAt: base},
	} {
		require.NoError(t, svc.Save(ctx, record))
	}

	all, err := svc.Query(ctx, &analysis.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{all[0].Seq, all[1].Seq, all[2].Seq})

	pending, err := svc.Query(ctx, &analysis.Query{ProcessInstanceID: "proc-1", Status: model.RecordPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rec-1", pending[0].ID)
}

func TestService_LookupAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := New(dir)
	require.NoError(t, err)
	record := &model.AnalysisRecord{
		ID:                "rec-1",
		Seq:               1,
		ProcessInstanceID: "proc-1",
		Status:            model.RecordPending,
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, first.Save(ctx, record))

	// A fresh service on the same directory resolves ids by scanning.
	second, err := New(dir)
	require.NoError(t, err)
	loaded, err := second.Load(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", loaded.ID)

	record.Status = model.RecordProcessed
	require.NoError(t, second.Update(ctx, record))
	reloaded, err := second.Load(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordProcessed, reloaded.Status)

	_, err = second.Load(ctx, "ghost")
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

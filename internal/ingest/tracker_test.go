package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/store"
)

// fakeLedger records finish calls.
type fakeLedger struct {
	mu       sync.Mutex
	finished []store.RunResult
	startErr error
	ctxErrs  []error
}

func (f *fakeLedger) StartRun(_ context.Context, runID, scraper string) (*model.IngestRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &model.IngestRun{ID: 1, RunID: runID, ScraperName: scraper, Status: model.RunRunning}, nil
}

func (f *fakeLedger) FinishRun(ctx context.Context, _ int64, r store.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, r)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return nil
}

func TestTracker_CloseSuccess(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := NewTracker(st).Start(ctx, SourceICC)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)

	run.Inserted()
	run.Inserted()
	run.Updated()
	sum, err := run.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, sum.Status)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)

	got, err := st.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, got.Status)
	assert.Equal(t, 2, got.RowsInserted)
	assert.NotNil(t, got.FinishedAt)
}

func TestTracker_ErrorsMakePartial(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := NewTracker(st).Start(ctx, SourceNEC)
	require.NoError(t, err)
	run.Inserted()
	run.Reject("bad row %d", 7)

	sum, err := run.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, sum.Status)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []string{"bad row 7"}, sum.Errors)

	got, err := st.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad row 7"}, got.Errors)
}

func TestTracker_FailAfterCloseIsNoop(t *testing.T) {
	ledger := &fakeLedger{}
	ctx := context.Background()

	run, err := NewTracker(ledger).Start(ctx, SourceEnergy)
	require.NoError(t, err)

	first, err := run.Close(ctx)
	require.NoError(t, err)
	second, err := run.Fail(ctx, eris.New("late"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, ledger.finished, 1)
	assert.Equal(t, model.RunSuccess, ledger.finished[0].Status)
}

func TestTracker_FinishIgnoresCancellation(t *testing.T) {
	ledger := &fakeLedger{}
	ctx, cancel := context.WithCancel(context.Background())

	run, err := NewTracker(ledger).Start(ctx, SourceMunicipal)
	require.NoError(t, err)
	cancel()

	sum, err := run.Fail(ctx, context.Canceled)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, sum.Status)
	require.Len(t, ledger.ctxErrs, 1)
	assert.NoError(t, ledger.ctxErrs[0])
}

func TestTracker_StartError(t *testing.T) {
	ledger := &fakeLedger{startErr: eris.New("db down")}
	_, err := NewTracker(ledger).Start(context.Background(), SourceICC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start run for icc")
}

func TestRun_ConcurrentCounters(t *testing.T) {
	ledger := &fakeLedger{}
	run, err := NewTracker(ledger).Start(context.Background(), SourceMunicipal)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run.Inserted()
			run.Skip(1)
		}()
	}
	wg.Wait()

	snap := run.Snapshot()
	assert.Equal(t, model.RunRunning, snap.Status)
	assert.Equal(t, 50, snap.Inserted)
	assert.Equal(t, 50, snap.Skipped)
}

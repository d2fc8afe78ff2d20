// Package ingest runs adoption sources against the store: each invocation
// is tracked as one ingest run whose writes are funneled through a single
// writer and whose terminal status is written exactly once.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/store"
)

// Ledger is the run bookkeeping subset of the store.
type Ledger interface {
	StartRun(ctx context.Context, runID, scraper string) (*model.IngestRun, error)
	FinishRun(ctx context.Context, id int64, res store.RunResult) error
}

// Summary is the outcome of one run.
type Summary struct {
	RunID    string          `json:"run_id"`
	Source   string          `json:"source"`
	Status   model.RunStatus `json:"status"`
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors"`
}

// Tracker opens ingest runs.
type Tracker struct {
	ledger Ledger
	newID  func() string
}

// NewTracker creates a Tracker writing to ledger.
func NewTracker(ledger Ledger) *Tracker {
	return &Tracker{ledger: ledger, newID: uuid.NewString}
}

// Start opens a run in the running state.
func (t *Tracker) Start(ctx context.Context, source string) (*Run, error) {
	runID := t.newID()
	rec, err := t.ledger.StartRun(ctx, runID, source)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: start run for %s", source)
	}
	zap.L().Info("ingest run started",
		zap.String("component", "ingest"),
		zap.String("source", source),
		zap.String("run_id", runID),
	)
	return &Run{ledger: t.ledger, ID: rec.ID, RunID: runID, Source: source}, nil
}

// Run accumulates counters and errors for one open run. It is safe for
// concurrent use.
type Run struct {
	ledger Ledger

	ID     int64
	RunID  string
	Source string

	mu       sync.Mutex
	inserted int
	updated  int
	skipped  int
	errors   []string
	closed   bool
	summary  Summary
}

// Inserted counts a newly created row.
func (r *Run) Inserted() {
	r.mu.Lock()
	r.inserted++
	r.mu.Unlock()
}

// Updated counts a refreshed existing row.
func (r *Run) Updated() {
	r.mu.Lock()
	r.updated++
	r.mu.Unlock()
}

// Skip counts n rows that were not written.
func (r *Run) Skip(n int) {
	r.mu.Lock()
	r.skipped += n
	r.mu.Unlock()
}

// AddError records a run-level error message.
func (r *Run) AddError(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

// Reject records a row-level failure: the error is captured and the row
// counted as skipped.
func (r *Run) Reject(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.skipped++
	r.mu.Unlock()
	zap.L().Warn("row rejected",
		zap.String("component", "ingest"),
		zap.String("source", r.Source),
		zap.String("run_id", r.RunID),
		zap.String("reason", msg),
	)
}

// Snapshot returns the current counters.
func (r *Run) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(model.RunRunning)
}

func (r *Run) snapshotLocked(status model.RunStatus) Summary {
	errs := make([]string, len(r.errors))
	copy(errs, r.errors)
	return Summary{
		RunID:    r.RunID,
		Source:   r.Source,
		Status:   status,
		Inserted: r.inserted,
		Updated:  r.updated,
		Skipped:  r.skipped,
		Errors:   errs,
	}
}

// Close finishes the run as success when no errors were recorded and as
// partial otherwise.
func (r *Run) Close(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	status := model.RunSuccess
	if len(r.errors) > 0 {
		status = model.RunPartial
	}
	r.mu.Unlock()
	return r.finish(ctx, status)
}

// Fail records err and finishes the run as failed.
func (r *Run) Fail(ctx context.Context, err error) (Summary, error) {
	if err != nil {
		r.AddError(err.Error())
	}
	return r.finish(ctx, model.RunFailed)
}

// finish writes the terminal status once. Later calls return the first
// summary. The write ignores cancellation of ctx so an aborted run is
// still closed.
func (r *Run) finish(ctx context.Context, status model.RunStatus) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.summary, nil
	}
	r.closed = true
	r.summary = r.snapshotLocked(status)

	err := r.ledger.FinishRun(context.WithoutCancel(ctx), r.ID, store.RunResult{
		Status:   status,
		Inserted: r.inserted,
		Updated:  r.updated,
		Skipped:  r.skipped,
		Errors:   r.errors,
	})
	if err != nil {
		return r.summary, eris.Wrapf(err, "ingest: finish run %s", r.RunID)
	}

	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("source", r.Source),
		zap.String("run_id", r.RunID),
		zap.String("status", string(status)),
		zap.Int("inserted", r.inserted),
		zap.Int("updated", r.updated),
		zap.Int("skipped", r.skipped),
		zap.Int("errors", len(r.errors)),
	)
	if status == model.RunFailed {
		log.Error("ingest run failed")
	} else {
		log.Info("ingest run finished")
	}
	return r.summary, nil
}

package ingest

import (
	"context"
	"strconv"
	"sync"

	"github.com/sells-group/ahj-registry/internal/db"
	"github.com/sells-group/ahj-registry/internal/store"
)

// Committer is the write subset of the store.
type Committer interface {
	ResolveJurisdiction(ctx context.Context, key store.JurisdictionKey) (int64, bool, error)
	UpsertAdoption(ctx context.Context, in store.AdoptionInput) (int64, bool, error)
	AddAmendment(ctx context.Context, in store.AmendmentInput) (int64, bool, error)
	RegisterSource(ctx context.Context, in store.SourceInput) (int64, error)
}

// Writer serializes a run's writes and tags them with the run id. Write
// failures never propagate: they are recorded on the run and the row is
// counted as skipped, so sibling rows keep going.
type Writer struct {
	st  Committer
	run *Run
	mu  sync.Mutex
}

// NewWriter creates the writer for run.
func NewWriter(st Committer, run *Run) *Writer {
	return &Writer{st: st, run: run}
}

// Run returns the run this writer records into.
func (w *Writer) Run() *Run {
	return w.run
}

// Jurisdiction resolves key. ok is false when the write failed.
func (w *Writer) Jurisdiction(ctx context.Context, key store.JurisdictionKey) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, _, err := w.st.ResolveJurisdiction(ctx, key)
	if err != nil {
		w.run.Reject("jurisdiction %s, %s: %s", key.Name, key.StateAbbr, describe(err))
		return 0, false
	}
	return id, true
}

// Adoption upserts in, counting it as inserted or updated.
func (w *Writer) Adoption(ctx context.Context, in store.AdoptionInput) (int64, bool) {
	in.IngestRunID = &w.run.ID
	w.mu.Lock()
	defer w.mu.Unlock()
	id, created, err := w.st.UpsertAdoption(ctx, in)
	if err != nil {
		w.run.Reject("adoption %s (jurisdiction %d): %s", in.CodeKey, in.JurisdictionID, describe(err))
		return 0, false
	}
	if created {
		w.run.Inserted()
	} else {
		w.run.Updated()
	}
	return id, true
}

// Amendment attaches an amendment. Amendments do not move the row counters
// unless they fail.
func (w *Writer) Amendment(ctx context.Context, in store.AmendmentInput) (int64, bool) {
	in.IngestRunID = &w.run.ID
	w.mu.Lock()
	defer w.mu.Unlock()
	id, _, err := w.st.AddAmendment(ctx, in)
	if err != nil {
		w.run.Reject("amendment for adoption %d: %s", in.AdoptionID, describe(err))
		return 0, false
	}
	return id, true
}

// Source registers a provenance pointer. A failure is recorded and nil
// returned, leaving facts without a source link.
func (w *Writer) Source(ctx context.Context, in store.SourceInput) *int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, err := w.st.RegisterSource(ctx, in)
	if err != nil {
		w.run.AddError("register source " + in.URL + ": " + describe(err))
		return nil
	}
	return &id
}

func describe(err error) string {
	if db.IsConstraintViolation(err) {
		return "constraint violation: " + err.Error()
	}
	return err.Error()
}

// yearLabel renders an edition year as its label, or nil.
func yearLabel(year *int) *string {
	if year == nil {
		return nil
	}
	s := strconv.Itoa(*year)
	return &s
}

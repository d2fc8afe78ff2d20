package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/model"
)

// Source names used as ingest run scraper names.
const (
	SourceICC       = "icc"
	SourceNEC       = "nec"
	SourceEnergy    = "iecc"
	SourceMunicipal = "municipal"
)

// Source is one ingestion pipeline. Run writes through w; row-level
// problems are recorded on w.Run(). A returned error means no usable source
// data could be obtained and fails the run.
type Source interface {
	Name() string
	Run(ctx context.Context, w *Writer) error
}

// Store is what the engine needs from persistence.
type Store interface {
	Ledger
	Committer
}

// Engine runs sources, each as its own tracked ingest run.
type Engine struct {
	st      Store
	tracker *Tracker
}

// NewEngine creates an Engine.
func NewEngine(st Store) *Engine {
	return &Engine{st: st, tracker: NewTracker(st)}
}

// Run executes src inside a new ingest run and always closes that run,
// also when src fails, panics, or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, src Source) (sum Summary, err error) {
	run, err := e.tracker.Start(ctx, src.Name())
	if err != nil {
		return Summary{Source: src.Name(), Status: model.RunFailed, Errors: []string{err.Error()}}, err
	}
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", src.Name()), zap.String("run_id", run.RunID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("source panicked", zap.Any("panic", p))
			sum, err = run.Fail(ctx, eris.Errorf("panic: %v", p))
			if err == nil {
				err = eris.Errorf("ingest: %s panicked: %v", src.Name(), p)
			}
		}
	}()

	start := time.Now()
	srcErr := src.Run(ctx, NewWriter(e.st, run))
	if srcErr == nil && ctx.Err() != nil {
		srcErr = eris.Wrap(ctx.Err(), "run aborted")
	}
	if srcErr != nil {
		log.Error("source failed", zap.Error(srcErr), zap.Duration("elapsed", time.Since(start)))
		return run.Fail(ctx, srcErr)
	}

	sum, err = run.Close(ctx)
	log.Info("source complete", zap.Duration("elapsed", time.Since(start)))
	return sum, err
}

// RunAll runs sources in order. A failing source does not stop later ones;
// the returned error lists every source whose run ended failed.
func (e *Engine) RunAll(ctx context.Context, sources []Source) ([]Summary, error) {
	var (
		out    []Summary
		failed []string
	)
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		sum, err := e.Run(ctx, src)
		if err != nil {
			zap.L().Error("ingest run bookkeeping failed",
				zap.String("component", "ingest"),
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			sum.Status = model.RunFailed
		}
		out = append(out, sum)
		if sum.Status == model.RunFailed {
			failed = append(failed, src.Name())
		}
	}
	if ctx.Err() != nil {
		return out, eris.Wrap(ctx.Err(), "ingest: run all aborted")
	}
	if len(failed) > 0 {
		return out, eris.Errorf("ingest: failed sources: %s", strings.Join(failed, ", "))
	}
	return out, nil
}

package ingest

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/store"
)

// funcSource adapts a function to Source.
type funcSource struct {
	name string
	fn   func(ctx context.Context, w *Writer) error
}

func (s funcSource) Name() string                             { return s.name }
func (s funcSource) Run(ctx context.Context, w *Writer) error { return s.fn(ctx, w) }

func stateWriter(abbr, name string) func(ctx context.Context, w *Writer) error {
	return func(ctx context.Context, w *Writer) error {
		jid, ok := w.Jurisdiction(ctx, store.JurisdictionKey{StateAbbr: abbr, StateName: name, Name: name, Type: model.TypeState})
		if !ok {
			return nil
		}
		w.Adoption(ctx, store.AdoptionInput{JurisdictionID: jid, CodeKey: "IBC", EditionYear: model.Ptr(2021), Status: model.StatusAdopted})
		return nil
	}
}

func TestEngine_RunSuccess(t *testing.T) {
	st := newTestStore(t)

	sum := runSource(t, st, funcSource{name: "icc", fn: stateWriter("NV", "Nevada")})
	assert.Equal(t, model.RunSuccess, sum.Status)
	assert.Equal(t, 1, sum.Inserted)

	got, err := st.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, got.Status)
	assert.Equal(t, "icc", got.ScraperName)
}

func TestEngine_SourceErrorFailsRun(t *testing.T) {
	st := newTestStore(t)

	sum := runSource(t, st, funcSource{name: "icc", fn: func(context.Context, *Writer) error {
		return ErrChartDownload
	}})
	assert.Equal(t, model.RunFailed, sum.Status)
	assert.Equal(t, []string{"failed to download chart from all URLs"}, sum.Errors)

	got, err := st.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
}

func TestEngine_PanicFailsRun(t *testing.T) {
	st := newTestStore(t)

	sum, err := NewEngine(st).Run(context.Background(), funcSource{name: "nec", fn: func(context.Context, *Writer) error {
		panic("boom")
	}})
	require.Error(t, err)
	assert.Equal(t, model.RunFailed, sum.Status)

	got, gerr := st.GetRun(context.Background(), sum.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Contains(t, got.Errors[0], "boom")
}

func TestEngine_CancelledRunIsClosed(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	sum, err := NewEngine(st).Run(ctx, funcSource{name: "municipal", fn: func(context.Context, *Writer) error {
		cancel()
		return nil
	}})
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, sum.Status)
	assert.Contains(t, sum.Errors[0], "run aborted")

	got, err := st.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.NotNil(t, got.FinishedAt)
}

func TestEngine_RunAllContinuesPastFailure(t *testing.T) {
	st := newTestStore(t)

	sums, err := NewEngine(st).RunAll(context.Background(), []Source{
		funcSource{name: "icc", fn: func(context.Context, *Writer) error { return eris.New("no rows extracted") }},
		funcSource{name: "nec", fn: stateWriter("ME", "Maine")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed sources: icc")
	require.Len(t, sums, 2)
	assert.Equal(t, model.RunFailed, sums[0].Status)
	assert.Equal(t, model.RunSuccess, sums[1].Status)

	sources, err := st.DataSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nec"}, sources)
}

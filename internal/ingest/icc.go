package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/chart"
	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/pdftext"
	"github.com/sells-group/ahj-registry/internal/store"
)

// Run-level failure messages of the chart source.
var (
	ErrChartDownload = eris.New("failed to download chart from all URLs")
	ErrNoRows        = eris.New("no rows extracted")
)

// ICCChart ingests the ICC master adoption chart: one adoption per state
// and code column.
type ICCChart struct {
	Fetcher fetcher.Fetcher
	PDF     pdftext.Extractor
	// URLs are tried in order; the first successful download wins.
	URLs []string
	// LocalPDF skips the download when set.
	LocalPDF string
	// WorkDir receives the downloaded PDF (os.TempDir when empty).
	WorkDir string
	DryRun  bool
	// Extractor defaults to chart.NewICCExtractor.
	Extractor *chart.Extractor
}

// Name implements Source.
func (s *ICCChart) Name() string { return SourceICC }

// Run implements Source.
func (s *ICCChart) Run(ctx context.Context, w *Writer) error {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", s.Name()))

	path, src, cleanup, err := s.obtain(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := s.PDF.ExtractText(ctx, path)
	if err != nil {
		return eris.Wrap(err, "decode chart")
	}

	ext := s.Extractor
	if ext == nil {
		ext = chart.NewICCExtractor()
	}
	doc := chart.DecodeLayout(text, ext.Columns())
	records := ext.Extract(doc)
	unmatched := ext.Unmatched(doc)
	log.Info("chart rows extracted", zap.Int("rows", len(records)), zap.Strings("unmatched", unmatched))
	if len(records) == 0 {
		return ErrNoRows
	}

	if s.DryRun {
		for _, r := range records {
			log.Info("dry run row", zap.String("state", r.Name), zap.Int("cells", len(r.Cells)))
		}
		for _, name := range unmatched {
			log.Warn("dry run unmatched row", zap.String("name", name))
		}
		w.Run().Skip(len(records))
		return nil
	}

	for _, name := range unmatched {
		w.Run().Reject("unknown state name: %q", name)
	}
	sourceID := w.Source(ctx, src)
	for _, rec := range records {
		st, ok := model.StateByName(rec.Name)
		if !ok {
			w.Run().Reject("unknown state name: %q", rec.Name)
			continue
		}
		jid, ok := w.Jurisdiction(ctx, store.JurisdictionKey{
			StateAbbr: st.Abbr,
			StateName: st.Name,
			Name:      st.Name,
			Type:      model.TypeState,
		})
		if !ok {
			continue
		}
		for _, cell := range rec.Cells {
			w.Adoption(ctx, store.AdoptionInput{
				JurisdictionID: jid,
				CodeKey:        cell.Code,
				EditionYear:    cell.Year,
				EditionLabel:   yearLabel(cell.Year),
				Status:         cell.Status,
				SourceID:       sourceID,
			})
		}
	}
	return nil
}

// obtain returns a local chart path and its provenance record.
func (s *ICCChart) obtain(ctx context.Context) (string, store.SourceInput, func(), error) {
	label := "ICC Master I-Code Adoption Chart"
	src := store.SourceInput{Type: model.SourceICCChart, Label: &label}
	noop := func() {}

	if s.LocalPDF != "" {
		raw, err := os.ReadFile(s.LocalPDF)
		if err != nil {
			return "", src, noop, eris.Wrapf(err, "read chart %s", s.LocalPDF)
		}
		src.URL = "file://" + s.LocalPDF
		if len(s.URLs) > 0 {
			src.URL = s.URLs[0]
		}
		src.ContentHash = model.Ptr(fetcher.ContentHash(raw))
		return s.LocalPDF, src, noop, nil
	}

	dir := s.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	for _, u := range s.URLs {
		f, err := os.CreateTemp(dir, "icc-chart-*.pdf")
		if err != nil {
			return "", src, noop, eris.Wrap(err, "create chart temp file")
		}
		path := f.Name()
		f.Close() //nolint:errcheck

		doc, err := fetcher.DownloadToFile(ctx, s.Fetcher, u, path)
		if err != nil {
			os.Remove(path) //nolint:errcheck
			zap.L().Warn("chart download failed",
				zap.String("component", "ingest"),
				zap.String("url", u),
				zap.Error(err),
			)
			continue
		}
		src.URL = u
		src.StatusCode = &doc.StatusCode
		src.ContentHash = &doc.Hash
		zap.L().Info("chart downloaded",
			zap.String("component", "ingest"),
			zap.String("url", u),
			zap.String("sha256", doc.Hash[:12]),
			zap.String("path", filepath.Base(path)),
		)
		return path, src, func() { os.Remove(path) }, nil //nolint:errcheck
	}
	return "", src, noop, ErrChartDownload
}

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/htmldoc"
	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/reference"
	"github.com/sells-group/ahj-registry/internal/store"
)

// EnergyStatusURL is the provenance URL recorded for energy adoptions.
const EnergyStatusURL = "https://www.energycodes.gov/status"

var (
	reResidential = regexp.MustCompile(`(?i)(?:IECC|Residential)\s*(\d{4})`)
	reASHRAE      = regexp.MustCompile(`90\.1[-–](\d{4})`)
)

// Energy ingests residential and commercial energy code adoptions.
type Energy struct {
	Fetcher fetcher.Fetcher
	// Dataset defaults to reference.LoadEnergy.
	Dataset *reference.Dataset[reference.EnergyRecord]
	// PortalURL is a format string taking the lowercase state abbreviation.
	PortalURL string
	Live      bool
}

// Name implements Source.
func (s *Energy) Name() string { return SourceEnergy }

// Run implements Source.
func (s *Energy) Run(ctx context.Context, w *Writer) error {
	ds := s.Dataset
	if ds == nil {
		var err error
		if ds, err = reference.LoadEnergy(); err != nil {
			return err
		}
	}
	records := ds.Records
	if s.Live && s.PortalURL != "" {
		records = reference.Merge(records, s.fetchLive(ctx, records), reference.EnergyPolicy())
	}

	label := "DOE Building Energy Codes Program status"
	sourceID := w.Source(ctx, store.SourceInput{Type: model.SourceDOEEnergy, URL: EnergyStatusURL, Label: &label})

	for _, r := range records {
		st, ok := model.StateByAbbr(r.Abbr)
		if !ok {
			w.Run().Reject("unknown state abbreviation %q", r.Abbr)
			continue
		}
		jid, ok := w.Jurisdiction(ctx, store.JurisdictionKey{
			StateAbbr: st.Abbr, StateName: st.Name, Name: st.Name, Type: model.TypeState,
		})
		if !ok {
			continue
		}

		res := store.AdoptionInput{
			JurisdictionID: jid,
			CodeKey:        "IECC-R",
			Status:         model.StatusNotAdopted,
			SourceText:     model.StringOrNil(r.Notes),
			SourceID:       sourceID,
		}
		if r.Residential != nil {
			res.EditionYear = r.Residential
			res.EditionLabel = yearLabel(r.Residential)
			res.EffectiveDate = r.ResidentialEffective
			res.Status = model.StatusAdopted
		}
		w.Adoption(ctx, res)

		if code, year, lbl, ok := r.CommercialEdition(); ok {
			w.Adoption(ctx, store.AdoptionInput{
				JurisdictionID: jid,
				CodeKey:        code,
				EditionYear:    &year,
				EditionLabel:   &lbl,
				Status:         model.StatusAdopted,
				EffectiveDate:  r.CommercialEffective,
				SourceText:     model.StringOrNil(r.Notes),
				SourceID:       sourceID,
			})
		}
	}
	return nil
}

// fetchLive scrapes one portal page per state. Failures are logged only:
// the reference row stands in for the state.
func (s *Energy) fetchLive(ctx context.Context, baseline []reference.EnergyRecord) []reference.EnergyRecord {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", s.Name()))
	var out []reference.EnergyRecord
	for _, b := range baseline {
		if ctx.Err() != nil {
			break
		}
		u := fmt.Sprintf(s.PortalURL, strings.ToLower(b.Abbr))
		doc, err := s.Fetcher.Fetch(ctx, u)
		if err != nil {
			log.Warn("energy portal fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		text, err := htmldoc.DocumentText(bytes.NewReader(doc.Body))
		if err != nil {
			log.Warn("energy portal parse failed", zap.String("url", u), zap.Error(err))
			continue
		}
		out = append(out, ParseEnergyText(b.State, b.Abbr, text))
	}
	return out
}

// ParseEnergyText reads residential IECC and commercial ASHRAE 90.1
// editions from a state's portal page text.
func ParseEnergyText(state, abbr, text string) reference.EnergyRecord {
	r := reference.EnergyRecord{State: state, Abbr: abbr}
	if m := reResidential.FindStringSubmatch(text); m != nil {
		y := atoi(m[1])
		r.Residential = &y
	}
	if m := reASHRAE.FindStringSubmatch(text); m != nil {
		c := "90.1-" + m[1]
		r.Commercial = &c
	}
	return r
}

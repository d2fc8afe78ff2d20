package ingest

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/htmldoc"
	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/reference"
	"github.com/sells-group/ahj-registry/internal/store"
)

var (
	reEdition   = regexp.MustCompile(`(20\d\d)`)
	reEffective = regexp.MustCompile(`\((\d{1,2})/(\d{1,2})/(\d{4})\)`)
)

// NEC ingests National Electrical Code adoptions from the reference
// dataset, optionally refreshed from live enforcement-map pages.
type NEC struct {
	Fetcher fetcher.Fetcher
	// Dataset defaults to reference.LoadElectrical.
	Dataset      *reference.Dataset[reference.ElectricalRecord]
	PrimaryURL   string
	SecondaryURL string
	Live         bool
}

// Name implements Source.
func (s *NEC) Name() string { return SourceNEC }

// Run implements Source.
func (s *NEC) Run(ctx context.Context, w *Writer) error {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", s.Name()))

	ds := s.Dataset
	if ds == nil {
		var err error
		if ds, err = reference.LoadElectrical(); err != nil {
			return err
		}
	}
	records := ds.Records
	srcURL := s.PrimaryURL

	if s.Live {
		live, url := s.fetchLive(ctx, w.Run())
		if len(live) > 0 {
			records = reference.Merge(records, live, reference.ElectricalPolicy())
			srcURL = url
		}
		log.Info("live electrical rows", zap.Int("rows", len(live)), zap.String("url", url))
	}
	if srcURL == "" {
		srcURL = "reference:nec@" + ds.Version
	}

	label := "NFPA NEC Enforcement Map"
	sourceID := w.Source(ctx, store.SourceInput{Type: model.SourceNFPAMap, URL: srcURL, Label: &label})

	for _, r := range records {
		if r.Abbr == "" {
			w.Run().Reject("electrical record %q has no state abbreviation", r.State)
			continue
		}
		key := store.JurisdictionKey{StateAbbr: r.Abbr, Name: r.State, Type: r.Type()}
		if st, ok := model.StateByAbbr(r.Abbr); ok {
			key.StateName = st.Name
		} else {
			w.Run().Reject("unknown state abbreviation %q", r.Abbr)
			continue
		}
		jid, ok := w.Jurisdiction(ctx, key)
		if !ok {
			continue
		}
		w.Adoption(ctx, store.AdoptionInput{
			JurisdictionID: jid,
			CodeKey:        "NEC",
			EditionYear:    r.Edition,
			EditionLabel:   yearLabel(r.Edition),
			Status:         r.Status,
			EffectiveDate:  r.Effective,
			SourceText:     model.StringOrNil(r.Notes),
			SourceID:       sourceID,
		})
	}
	return nil
}

// fetchLive tries the primary then the secondary page. Each failure is
// recorded on the run; the reference data still gets written.
func (s *NEC) fetchLive(ctx context.Context, run *Run) ([]reference.ElectricalRecord, string) {
	for _, u := range []string{s.PrimaryURL, s.SecondaryURL} {
		if u == "" {
			continue
		}
		doc, err := s.Fetcher.Fetch(ctx, u)
		if err != nil {
			run.AddError(fmt.Sprintf("fetch %s: %v", u, err))
			continue
		}
		recs, err := ParseElectricalTables(doc.Body)
		if err != nil {
			run.AddError(fmt.Sprintf("parse %s: %v", u, err))
			continue
		}
		if len(recs) > 0 {
			return recs, u
		}
	}
	return nil, ""
}

// ParseElectricalTables decodes adoption rows from HTML tables whose header
// mentions State or Edition. The first cell names the jurisdiction and the
// second carries the edition with an optional "(m/d/yyyy)" effective date.
// Any further cells are notes and never affect edition or status.
func ParseElectricalTables(body []byte) ([]reference.ElectricalRecord, error) {
	tables, err := htmldoc.Tables(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []reference.ElectricalRecord
	for _, t := range tables {
		if !t.HeaderContains("State", "Edition") {
			continue
		}
		for _, row := range t.Rows {
			if len(row) < 2 || row[0] == "" {
				continue
			}
			out = append(out, electricalRow(row[0], row[1], strings.Join(row[2:], " ")))
		}
	}
	return out, nil
}

func electricalRow(name, edition, notes string) reference.ElectricalRecord {
	r := reference.ElectricalRecord{State: strings.TrimSpace(name), Notes: strings.TrimSpace(notes)}
	if st, ok := model.StateByName(r.State); ok {
		r.State = st.Name
		r.Abbr = st.Abbr
	}

	lower := strings.ToLower(edition)
	if m := reEffective.FindStringSubmatch(edition); m != nil {
		iso := fmt.Sprintf("%s-%02d-%02d", m[3], atoi(m[1]), atoi(m[2]))
		r.Effective = &iso
		edition = strings.Replace(edition, m[0], "", 1)
	}

	switch {
	case strings.Contains(lower, "no statewide") || strings.Contains(lower, "local"):
		r.Status = model.StatusLocalOnly
	default:
		if m := reEdition.FindString(edition); m != "" {
			y := atoi(m)
			r.Edition = &y
			r.Status = model.StatusAdopted
		} else {
			r.Status = model.StatusNotAdopted
		}
	}
	return r
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

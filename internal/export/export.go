// Package export flattens the registry into the hierarchical document
// consumed by dashboards: states, then local jurisdictions by kind.
package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/model"
)

// Disclaimer is carried in every document's meta block.
const Disclaimer = "Reference data only. Always verify with the AHJ before submitting construction documents. Adoption status changes frequently."

// Reader is the read-only store surface the exporter needs.
type Reader interface {
	ListJurisdictions(ctx context.Context) ([]model.Jurisdiction, error)
	ListAdoptions(ctx context.Context, includeTerminal bool) ([]model.CodeAdoption, error)
	ListAmendments(ctx context.Context) ([]model.Amendment, error)
	DataSources(ctx context.Context) ([]string, error)
}

// Document is the export root.
type Document struct {
	Meta          Meta                  `json:"meta"`
	Jurisdictions map[string]*StateNode `json:"jurisdictions"`
}

// Meta describes the export.
type Meta struct {
	GeneratedAt        string   `json:"generated_at"`
	TotalJurisdictions int      `json:"total_jurisdictions"`
	TotalAdoptions     int      `json:"total_adoptions"`
	DataSources        []string `json:"data_sources"`
	Disclaimer         string   `json:"disclaimer"`
}

// Adopted maps a code key to its exported adoption.
type Adopted map[string]AdoptionEntry

// StateNode is one state with its local jurisdictions.
type StateNode struct {
	Name             string                      `json:"name"`
	Abbr             string                      `json:"abbr"`
	Region           *string                     `json:"region"`
	Adopted          Adopted                     `json:"adopted"`
	Cities           map[string]CityNode         `json:"cities"`
	Counties         map[string]DistrictNode     `json:"counties"`
	FireDistricts    map[string]FireDistrictNode `json:"fire_districts"`
	SpecialDistricts map[string]DistrictNode     `json:"special_districts"`
}

// CityNode is a city-like local government.
type CityNode struct {
	Type       model.JurisdictionType `json:"type"`
	County     *string                `json:"county"`
	HasOwnCode bool                   `json:"has_own_code"`
	Adopted    Adopted                `json:"adopted"`
}

// FireDistrictNode is a fire district.
type FireDistrictNode struct {
	Type    model.JurisdictionType `json:"type"`
	County  *string                `json:"county"`
	Adopted Adopted                `json:"adopted"`
}

// DistrictNode is a county or a special/utility district.
type DistrictNode struct {
	Type    model.JurisdictionType `json:"type"`
	Adopted Adopted                `json:"adopted"`
}

// AdoptionEntry is one exported code adoption.
type AdoptionEntry struct {
	Year           *int                 `json:"year"`
	Label          *string              `json:"label"`
	Status         model.AdoptionStatus `json:"status"`
	Org            string               `json:"org"`
	FullName       string               `json:"full_name"`
	Mandatory      bool                 `json:"mandatory"`
	Effective      *string              `json:"effective"`
	Amendments     []AmendmentEntry     `json:"amendments"`
	AmendmentCount int                  `json:"amendment_count"`
}

// AmendmentEntry is an amendment reduced to its exported fields.
type AmendmentEntry struct {
	Type        model.AmendmentType `json:"type"`
	Section     *string             `json:"section"`
	Title       *string             `json:"title"`
	Description string              `json:"description"`
	Ordinance   *string             `json:"ordinance"`
	Date        *string             `json:"date"`
}

// Exporter builds documents. It never writes to the store.
type Exporter struct {
	r   Reader
	now func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New creates an Exporter reading from r.
func New(r Reader, opts ...Option) *Exporter {
	e := &Exporter{r: r, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build reads the store and assembles the document. superseded and
// withdrawn adoptions are left out. When a jurisdiction holds several
// adoptions of one code, the most recently written row is exported (latest
// updated_at, then highest id).
func (e *Exporter) Build(ctx context.Context) (*Document, error) {
	js, err := e.r.ListJurisdictions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list jurisdictions")
	}
	ads, err := e.r.ListAdoptions(ctx, false)
	if err != nil {
		return nil, eris.Wrap(err, "export: list adoptions")
	}
	ams, err := e.r.ListAmendments(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: list amendments")
	}
	sources, err := e.r.DataSources(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "export: data sources")
	}
	if sources == nil {
		sources = []string{}
	}

	amendsByAdoption := make(map[int64][]AmendmentEntry)
	for _, a := range ams {
		amendsByAdoption[a.AdoptionID] = append(amendsByAdoption[a.AdoptionID], AmendmentEntry{
			Type:        a.Type,
			Section:     a.SectionRef,
			Title:       a.Title,
			Description: a.Description,
			Ordinance:   a.OrdinanceNumber,
			Date:        a.OrdinanceDate,
		})
	}

	type picked struct {
		id      int64
		updated time.Time
		entry   AdoptionEntry
	}
	byJurisdiction := make(map[int64]map[string]picked)
	for _, a := range ads {
		codes := byJurisdiction[a.JurisdictionID]
		if codes == nil {
			codes = make(map[string]picked)
			byJurisdiction[a.JurisdictionID] = codes
		}
		if prev, ok := codes[a.CodeKey]; ok && newer(prev.updated, prev.id, a.UpdatedAt, a.ID) {
			continue
		}
		amends := amendsByAdoption[a.ID]
		if amends == nil {
			amends = []AmendmentEntry{}
		}
		codes[a.CodeKey] = picked{id: a.ID, updated: a.UpdatedAt, entry: AdoptionEntry{
			Year:           a.EditionYear,
			Label:          a.EditionLabel,
			Status:         a.Status,
			Org:            a.PublishingOrg,
			FullName:       a.CodeFullName,
			Mandatory:      a.IsMandatory,
			Effective:      a.EffectiveDate,
			Amendments:     amends,
			AmendmentCount: len(amends),
		}}
	}
	adoptedFor := func(id int64) Adopted {
		out := Adopted{}
		for code, p := range byJurisdiction[id] {
			out[code] = p.entry
		}
		return out
	}

	doc := &Document{
		Meta: Meta{
			GeneratedAt:        e.now().UTC().Format(time.RFC3339),
			TotalJurisdictions: len(js),
			TotalAdoptions:     len(ads),
			DataSources:        sources,
			Disclaimer:         Disclaimer,
		},
		Jurisdictions: make(map[string]*StateNode),
	}

	for _, j := range js {
		st := doc.Jurisdictions[j.StateAbbr]
		if st == nil {
			st = &StateNode{
				Name:             j.StateName,
				Abbr:             j.StateAbbr,
				Region:           j.Region,
				Adopted:          Adopted{},
				Cities:           map[string]CityNode{},
				Counties:         map[string]DistrictNode{},
				FireDistricts:    map[string]FireDistrictNode{},
				SpecialDistricts: map[string]DistrictNode{},
			}
			doc.Jurisdictions[j.StateAbbr] = st
		}
		place(st, j, adoptedFor(j.ID))
	}
	return doc, nil
}

// newer reports whether row (at, id) was written after row (bt, bid).
func newer(at time.Time, id int64, bt time.Time, bid int64) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}

// place files j under its state by jurisdiction type. Tribal jurisdictions
// have no slot in the document and are left out.
func place(st *StateNode, j model.Jurisdiction, adopted Adopted) {
	switch {
	case j.Type == model.TypeState || j.Type == model.TypeTerritory:
		st.Adopted = adopted
	case j.Type.IsMunicipal():
		st.Cities[j.Name] = CityNode{Type: j.Type, County: j.CountyName, HasOwnCode: j.HasOwnCode, Adopted: adopted}
	case j.Type == model.TypeCounty:
		st.Counties[j.Name] = DistrictNode{Type: j.Type, Adopted: adopted}
	case j.Type == model.TypeFireDistrict:
		st.FireDistricts[j.Name] = FireDistrictNode{Type: j.Type, County: j.CountyName, Adopted: adopted}
	case j.Type == model.TypeSpecialDistrict || j.Type == model.TypeUtilityDistrict:
		st.SpecialDistricts[j.Name] = DistrictNode{Type: j.Type, Adopted: adopted}
	default:
		zap.L().Debug("jurisdiction type not exported",
			zap.String("component", "export"),
			zap.String("jurisdiction", j.Name),
			zap.String("type", string(j.Type)),
		)
	}
}

// Render writes doc as indented JSON. Map keys are emitted sorted, so an
// unchanged store renders identically apart from generated_at.
func Render(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(doc), "export: encode")
}

// WriteFile builds and renders the document to path, creating parent
// directories as needed.
func (e *Exporter) WriteFile(ctx context.Context, path string) (*Document, error) {
	doc, err := e.Build(ctx)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "export: create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}
	if err := Render(f, doc); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "export: close %s", path)
	}
	zap.L().Info("export written",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.Int("states", len(doc.Jurisdictions)),
		zap.Int("adoptions", doc.Meta.TotalAdoptions),
	)
	return doc, nil
}

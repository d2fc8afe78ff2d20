package ingest

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/municode"
	"github.com/sells-group/ahj-registry/internal/ordinance"
	"github.com/sells-group/ahj-registry/internal/resilience"
	"github.com/sells-group/ahj-registry/internal/store"
)

const (
	maxSourceText   = 1000
	snippetQuery    = "International Building Code"
	ecodeSearchTerm = "building code"
)

// Target is one local jurisdiction to look up.
type Target struct {
	StateAbbr string
	Name      string
	Type      model.JurisdictionType
	County    *string
}

// DemoTargets is the built-in jurisdiction list used when none is given.
var DemoTargets = []Target{
	{StateAbbr: "TX", Name: "Houston", Type: model.TypeCity, County: model.Ptr("Harris")},
	{StateAbbr: "TX", Name: "Austin", Type: model.TypeCity, County: model.Ptr("Travis")},
	{StateAbbr: "TX", Name: "San Antonio", Type: model.TypeCity, County: model.Ptr("Bexar")},
	{StateAbbr: "CO", Name: "Denver", Type: model.TypeConsolidatedCityCounty},
	{StateAbbr: "CO", Name: "Boulder", Type: model.TypeCity, County: model.Ptr("Boulder")},
	{StateAbbr: "GA", Name: "Atlanta", Type: model.TypeCity, County: model.Ptr("Fulton")},
	{StateAbbr: "OH", Name: "Columbus", Type: model.TypeCity, County: model.Ptr("Franklin")},
	{StateAbbr: "OH", Name: "Cleveland", Type: model.TypeCity, County: model.Ptr("Cuyahoga")},
	{StateAbbr: "MN", Name: "Minneapolis", Type: model.TypeCity, County: model.Ptr("Hennepin")},
	{StateAbbr: "MN", Name: "Saint Paul", Type: model.TypeCity, County: model.Ptr("Ramsey")},
}

// TargetsFromTable reads a jurisdiction list with the columns
// state_abbr, jurisdiction_name, jurisdiction_type and an optional
// county_name. Rows missing a state or name are dropped; a missing type
// reads as city.
func TargetsFromTable(t *fetcher.Table) ([]Target, error) {
	stateCol, nameCol := t.Column("state_abbr"), t.Column("jurisdiction_name")
	if stateCol < 0 || nameCol < 0 {
		return nil, eris.New("ingest: jurisdiction list needs state_abbr and jurisdiction_name columns")
	}
	typeCol, countyCol := t.Column("jurisdiction_type"), t.Column("county_name")

	var out []Target
	for _, row := range t.Rows {
		tgt := Target{
			StateAbbr: strings.ToUpper(cell(row, stateCol)),
			Name:      cell(row, nameCol),
			Type:      model.JurisdictionType(strings.ToLower(cell(row, typeCol))),
			County:    model.StringOrNil(cell(row, countyCol)),
		}
		if tgt.StateAbbr == "" || tgt.Name == "" {
			continue
		}
		if tgt.Type == "" {
			tgt.Type = model.TypeCity
		}
		out = append(out, tgt)
	}
	return out, nil
}

// TargetsFromCities builds city targets in one state.
func TargetsFromCities(stateAbbr string, cities []string) []Target {
	var out []Target
	for _, c := range cities {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, Target{StateAbbr: strings.ToUpper(stateAbbr), Name: c, Type: model.TypeCity})
		}
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Municipal looks up local ordinances on the code portals and records the
// adoptions and amendments they state.
type Municipal struct {
	Client   *municode.Client
	Breakers *resilience.PortalBreakers
	// Extractor defaults to ordinance.NewDefault.
	Extractor *ordinance.Extractor
	// Converter defaults to ordinance.NewTextConverter.
	Converter        *ordinance.TextConverter
	Targets          []Target
	MaxJurisdictions int
	Concurrency      int
	DryRun           bool
}

// Name implements Source.
func (s *Municipal) Name() string { return SourceMunicipal }

// portalText is ordinance text with the page it came from.
type portalText struct {
	Text  string
	URL   string
	Label string
}

// Run implements Source. Each target runs independently; a failing target
// is recorded and never cancels its siblings.
func (s *Municipal) Run(ctx context.Context, w *Writer) error {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", s.Name()))

	if s.Extractor == nil {
		s.Extractor = ordinance.NewDefault()
	}
	if s.Converter == nil {
		s.Converter = ordinance.NewTextConverter()
	}
	if s.Breakers == nil {
		s.Breakers = resilience.NewPortalBreakers(resilience.DefaultBreakerConfig())
	}

	targets := s.Targets
	if len(targets) == 0 {
		targets = DemoTargets
	}
	if s.MaxJurisdictions > 0 && len(targets) > s.MaxJurisdictions {
		targets = targets[:s.MaxJurisdictions]
	}

	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}

	var found atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if s.process(gctx, w, t) {
				found.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	portals := make(map[string]string)
	for name, state := range s.Breakers.States() {
		portals[name] = state.String()
	}
	log.Info("municipal lookup complete",
		zap.Int("targets", len(targets)),
		zap.Int64("with_facts", found.Load()),
		zap.Any("portals", portals),
	)
	return nil
}

// process handles one target and reports whether it yielded facts.
func (s *Municipal) process(ctx context.Context, w *Writer, t Target) bool {
	log := zap.L().With(
		zap.String("component", "ingest"),
		zap.String("jurisdiction", t.Name),
		zap.String("state", t.StateAbbr),
	)

	st, ok := model.StateByAbbr(t.StateAbbr)
	if !ok {
		w.Run().Reject("unknown state abbreviation %q for %s", t.StateAbbr, t.Name)
		return false
	}

	pt, err := s.lookup(ctx, t)
	if err != nil {
		w.Run().AddError(t.Name + ", " + t.StateAbbr + ": " + err.Error())
		return false
	}
	if pt == nil || pt.Text == "" {
		log.Debug("no ordinance text found")
		return false
	}

	res := s.Extractor.Extract(pt.Text)
	if len(res.Facts) == 0 {
		log.Debug("no code references in ordinance text")
		return false
	}
	log.Info("ordinance facts extracted",
		zap.Int("facts", len(res.Facts)),
		zap.Int("amendments", len(res.Amendments)),
	)
	if s.DryRun {
		w.Run().Skip(len(res.Facts))
		return true
	}

	jid, ok := w.Jurisdiction(ctx, store.JurisdictionKey{
		StateAbbr: st.Abbr,
		StateName: st.Name,
		Name:      t.Name,
		Type:      t.Type,
		County:    t.County,
	})
	if !ok {
		return true
	}

	label := pt.Label
	sourceID := w.Source(ctx, store.SourceInput{
		JurisdictionID: &jid,
		Type:           model.SourceMunicipalCode,
		URL:            pt.URL,
		Label:          &label,
		ContentHash:    model.Ptr(fetcher.ContentHash([]byte(pt.Text))),
	})

	var ordNumber, ordDate *string
	if res.Ordinance != nil {
		ordNumber = model.StringOrNil(res.Ordinance.Number)
		ordDate = model.StringOrNil(res.Ordinance.Date)
	}

	owned := ordinance.Assign(res.Facts, res.Amendments)
	for i, f := range res.Facts {
		year := f.Year
		aid, ok := w.Adoption(ctx, store.AdoptionInput{
			JurisdictionID: jid,
			CodeKey:        f.Code,
			EditionYear:    &year,
			EditionLabel:   yearLabel(&year),
			Status:         model.StatusAdopted,
			SourceText:     model.StringOrNil(clip(f.Context, maxSourceText)),
			SourceID:       sourceID,
		})
		if !ok {
			continue
		}
		for _, a := range owned[i] {
			w.Amendment(ctx, store.AmendmentInput{
				AdoptionID:      aid,
				Type:            a.Type,
				SectionRef:      a.Section,
				Description:     a.Description,
				OrdinanceNumber: ordNumber,
				OrdinanceDate:   ordDate,
				SourceID:        sourceID,
			})
		}
	}
	return true
}

// lookup tries Municode, then eCode360. An error is returned only when
// every portal failed; finding nothing is (nil, nil).
func (s *Municipal) lookup(ctx context.Context, t Target) (*portalText, error) {
	pt, mErr := resilience.ExecuteVal(ctx, s.Breakers.Get(municode.PortalMunicode),
		func(ctx context.Context) (*portalText, error) { return s.fromMunicode(ctx, t) })
	if mErr == nil && pt != nil && pt.Text != "" {
		return pt, nil
	}
	if mErr != nil {
		zap.L().Warn("municode lookup failed",
			zap.String("component", "ingest"),
			zap.String("jurisdiction", t.Name),
			zap.Error(mErr),
		)
	}

	pt, eErr := resilience.ExecuteVal(ctx, s.Breakers.Get(municode.PortalEcode360),
		func(ctx context.Context) (*portalText, error) { return s.fromEcode360(ctx, t) })
	if eErr == nil {
		return pt, nil
	}
	if mErr != nil {
		return nil, eris.Wrap(eErr, mErr.Error())
	}
	return nil, eErr
}

func (s *Municipal) fromMunicode(ctx context.Context, t Target) (*portalText, error) {
	matches, err := s.Client.SearchClients(ctx, t.Name, t.StateAbbr)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	m := matches[0]
	pt := &portalText{
		URL:   s.Client.LibraryURL(m, t.Name, t.StateAbbr),
		Label: "Municode: " + t.Name + ", " + t.StateAbbr,
	}

	chapter, err := s.Client.FindBuildingChapter(ctx, m.ClientID)
	if err != nil {
		return nil, err
	}
	if chapter != nil {
		content, err := s.Client.NodeContent(ctx, chapter.ID)
		if err != nil {
			return nil, err
		}
		if content != "" {
			if pt.Text, err = s.Converter.Text(content); err != nil {
				return nil, err
			}
		}
	}

	if pt.Text == "" {
		if pt.Text, err = s.Client.SearchSnippets(ctx, m.ClientID, snippetQuery); err != nil {
			return nil, err
		}
	}
	return pt, nil
}

func (s *Municipal) fromEcode360(ctx context.Context, t Target) (*portalText, error) {
	libs, err := s.Client.EcodeLibraries(ctx, t.Name, t.StateAbbr)
	if err != nil || len(libs) == 0 {
		return nil, err
	}
	text, err := s.Client.EcodeSnippets(ctx, libs[0].URL, ecodeSearchTerm)
	if err != nil {
		return nil, err
	}
	return &portalText{
		Text:  text,
		URL:   libs[0].URL,
		Label: "eCode360: " + t.Name + ", " + t.StateAbbr,
	}, nil
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

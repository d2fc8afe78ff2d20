package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ahj-registry/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrRunClosed is returned when a terminal write targets a run that is
	// no longer running.
	ErrRunClosed = eris.New("store: run already finished")
)

// MaxRunErrors bounds the error list persisted with an ingest run.
const MaxRunErrors = 100

// JurisdictionKey identifies a jurisdiction. County is nil for state-level
// and statewide entities.
type JurisdictionKey struct {
	StateAbbr  string
	StateName  string
	Name       string
	Type       model.JurisdictionType
	County     *string
	HasOwnCode bool
	HomeRule   bool
}

// AdoptionInput is a candidate adoption fact bound to a resolved jurisdiction.
type AdoptionInput struct {
	JurisdictionID int64
	CodeKey        string
	EditionYear    *int
	EditionLabel   *string
	Status         model.AdoptionStatus
	// Mandatory defaults to true for every status except adopted_stretch.
	Mandatory     *bool
	EffectiveDate *string
	SourceText    *string
	SourceID      *int64
	IngestRunID   *int64
	SupersedesID  *int64
}

func (in AdoptionInput) mandatory() bool {
	if in.Mandatory != nil {
		return *in.Mandatory
	}
	return in.Status != model.StatusAdoptedStretch
}

func (in AdoptionInput) validate() error {
	if in.JurisdictionID <= 0 {
		return eris.New("store: adoption has no jurisdiction")
	}
	if in.CodeKey == "" {
		return eris.New("store: adoption has no code key")
	}
	if !in.Status.Valid() {
		return eris.Errorf("store: invalid adoption status %q", in.Status)
	}
	return nil
}

// AmendmentInput is a local amendment attached to an adoption.
type AmendmentInput struct {
	AdoptionID      int64
	Type            model.AmendmentType
	SectionRef      *string
	Title           *string
	Description     string
	OrdinanceNumber *string
	OrdinanceDate   *string
	SourceID        *int64
	IngestRunID     *int64
}

// SourceInput registers or refreshes a provenance pointer.
type SourceInput struct {
	JurisdictionID *int64
	Type           model.SourceType
	URL            string
	Label          *string
	StatusCode     *int
	ContentHash    *string
}

// RunResult is the terminal write for an ingest run.
type RunResult struct {
	Status   model.RunStatus
	Inserted int
	Updated  int
	Skipped  int
	Errors   []string
	Notes    *string
}

// Count is one row of a grouped count.
type Count struct {
	Key string `json:"key"`
	N   int    `json:"n"`
}

// Stats summarizes the registry contents.
type Stats struct {
	TotalJurisdictions int               `json:"total_jurisdictions"`
	TotalAdoptions     int               `json:"total_adoptions"`
	TotalAmendments    int               `json:"total_amendments"`
	ByType             []Count           `json:"by_type"`
	CodeCoverage       []Count           `json:"code_coverage"`
	ByStatus           []Count           `json:"by_status"`
	RecentRuns         []model.IngestRun `json:"recent_runs"`
}

// Store is the persistence contract for the registry.
type Store interface {
	Migrate(ctx context.Context) error

	// ResolveJurisdiction returns the id for key, creating the row on first
	// reference. created reports whether this call inserted it.
	ResolveJurisdiction(ctx context.Context, key JurisdictionKey) (id int64, created bool, err error)
	// UpsertAdoption inserts or refreshes the adoption keyed on
	// (jurisdiction, code, edition, status).
	UpsertAdoption(ctx context.Context, in AdoptionInput) (id int64, created bool, err error)
	// AddAmendment inserts the amendment unless an identical one exists.
	AddAmendment(ctx context.Context, in AmendmentInput) (id int64, created bool, err error)
	RegisterSource(ctx context.Context, in SourceInput) (int64, error)

	StartRun(ctx context.Context, runID, scraper string) (*model.IngestRun, error)
	FinishRun(ctx context.Context, id int64, res RunResult) error
	GetRun(ctx context.Context, runID string) (*model.IngestRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)
	// DataSources lists scrapers with at least one successful or partial run.
	DataSources(ctx context.Context) ([]string, error)

	SearchJurisdictions(ctx context.Context, query string, limit int) ([]model.Jurisdiction, error)
	ListJurisdictions(ctx context.Context) ([]model.Jurisdiction, error)
	// ListAdoptions returns adoptions ordered by jurisdiction, code, updated_at
	// and id.
	// superseded and withdrawn rows are included only when includeTerminal.
	ListAdoptions(ctx context.Context, includeTerminal bool) ([]model.CodeAdoption, error)
	ListAmendments(ctx context.Context) ([]model.Amendment, error)
	Stats(ctx context.Context) (*Stats, error)

	Close() error
}

func validateKey(key JurisdictionKey) error {
	if key.StateAbbr == "" || key.StateName == "" {
		return eris.New("store: jurisdiction has no state")
	}
	if key.Name == "" {
		return eris.New("store: jurisdiction has no name")
	}
	if !key.Type.Valid() {
		return eris.Errorf("store: invalid jurisdiction type %q", key.Type)
	}
	return nil
}

func validateResult(res RunResult) error {
	if !res.Status.Terminal() {
		return eris.Errorf("store: run status %q is not terminal", res.Status)
	}
	return nil
}

func encodeErrors(errs []string) (string, error) {
	if len(errs) > MaxRunErrors {
		errs = errs[:MaxRunErrors]
	}
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", eris.Wrap(err, "store: encode run errors")
	}
	return string(b), nil
}

func decodeErrors(raw *string) []string {
	out := []string{}
	if raw == nil || *raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return []string{*raw}
	}
	return out
}

func regionFor(abbr string) *string {
	if st, ok := model.StateByAbbr(abbr); ok {
		return &st.Region
	}
	return nil
}

// scannable abstracts *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

const jurisdictionColumns = `id, fips_state, fips_county, fips_place, state_abbr, state_name, county_name,
	jurisdiction_name, jurisdiction_type, has_own_code, home_rule, population, region, created_at, updated_at`

func scanJurisdiction(row scannable) (*model.Jurisdiction, error) {
	var j model.Jurisdiction
	var typ string
	err := row.Scan(&j.ID, &j.FIPSState, &j.FIPSCounty, &j.FIPSPlace, &j.StateAbbr, &j.StateName, &j.CountyName,
		&j.Name, &typ, &j.HasOwnCode, &j.HomeRule, &j.Population, &j.Region, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Type = model.JurisdictionType(typ)
	return &j, nil
}

const adoptionColumns = `id, jurisdiction_id, code_key, code_full_name, publishing_org, edition_year, edition_label,
	status, is_mandatory, effective_date, expiry_date, supersedes_id, source_text, source_id, ingest_run_id,
	created_at, updated_at`

func scanAdoption(row scannable) (*model.CodeAdoption, error) {
	var a model.CodeAdoption
	var status string
	err := row.Scan(&a.ID, &a.JurisdictionID, &a.CodeKey, &a.CodeFullName, &a.PublishingOrg, &a.EditionYear,
		&a.EditionLabel, &status, &a.IsMandatory, &a.EffectiveDate, &a.ExpiryDate, &a.SupersedesID, &a.SourceText,
		&a.SourceID, &a.IngestRunID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.AdoptionStatus(status)
	return &a, nil
}

const amendmentColumns = `id, adoption_id, amendment_type, section_ref, title, description, ordinance_number,
	ordinance_date, source_id, ingest_run_id, created_at`

func scanAmendment(row scannable) (*model.Amendment, error) {
	var a model.Amendment
	var typ *string
	err := row.Scan(&a.ID, &a.AdoptionID, &typ, &a.SectionRef, &a.Title, &a.Description, &a.OrdinanceNumber,
		&a.OrdinanceDate, &a.SourceID, &a.IngestRunID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if typ != nil {
		a.Type = model.AmendmentType(*typ)
	}
	return &a, nil
}

const runColumns = `id, run_id, scraper_name, started_at, finished_at, status, rows_inserted, rows_updated,
	rows_skipped, errors, notes`

func scanRun(row scannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var status string
	var errs *string
	err := row.Scan(&r.ID, &r.RunID, &r.ScraperName, &r.StartedAt, &r.FinishedAt, &status, &r.RowsInserted,
		&r.RowsUpdated, &r.RowsSkipped, &errs, &r.Notes)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.Errors = decodeErrors(errs)
	return &r, nil
}

// qualified prefixes each column in a column list with a table alias.
func qualified(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

const (
	statsByTypeQuery = `SELECT jurisdiction_type, COUNT(*) FROM jurisdictions
		GROUP BY jurisdiction_type ORDER BY COUNT(*) DESC, jurisdiction_type`
	statsCoverageQuery = `SELECT code_key, COUNT(DISTINCT jurisdiction_id) FROM code_adoptions
		WHERE status IN ('adopted', 'adopted_stretch')
		GROUP BY code_key ORDER BY COUNT(DISTINCT jurisdiction_id) DESC, code_key LIMIT 20`
	statsByStatusQuery = `SELECT status, COUNT(*) FROM code_adoptions
		GROUP BY status ORDER BY COUNT(*) DESC, status`
)

// ftsQuery turns free text into an FTS5 prefix query of quoted terms.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}

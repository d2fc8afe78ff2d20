package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ahj-registry/internal/db"
	"github.com/sells-group/ahj-registry/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT NOT NULL UNIQUE,
	scraper_name  TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL CHECK(status IN ('running','success','partial','failed')),
	rows_inserted INTEGER NOT NULL DEFAULT 0,
	rows_updated  INTEGER NOT NULL DEFAULT 0,
	rows_skipped  INTEGER NOT NULL DEFAULT 0,
	errors        JSONB NOT NULL DEFAULT '[]',
	notes         TEXT
);

CREATE TABLE IF NOT EXISTS jurisdictions (
	id                BIGSERIAL PRIMARY KEY,
	fips_state        TEXT,
	fips_county       TEXT,
	fips_place        TEXT,
	state_abbr        TEXT NOT NULL,
	state_name        TEXT NOT NULL,
	county_name       TEXT,
	jurisdiction_name TEXT NOT NULL,
	jurisdiction_type TEXT NOT NULL CHECK(jurisdiction_type IN (
		'state','county','city','town','village','township','borough','fire_district',
		'utility_district','special_district','tribal','territory','consolidated_city_county')),
	has_own_code      BOOLEAN NOT NULL DEFAULT false,
	home_rule         BOOLEAN NOT NULL DEFAULT false,
	population        BIGINT,
	region            TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_jurisdictions_key
	ON jurisdictions(state_abbr, COALESCE(county_name, ''), jurisdiction_name, jurisdiction_type);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_state ON jurisdictions(state_abbr);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_type ON jurisdictions(jurisdiction_type);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_fts ON jurisdictions USING GIN (
	to_tsvector('simple', jurisdiction_name || ' ' || COALESCE(county_name, '') || ' ' || state_name || ' ' || state_abbr)
);

CREATE TABLE IF NOT EXISTS source_urls (
	id               BIGSERIAL PRIMARY KEY,
	jurisdiction_id  BIGINT REFERENCES jurisdictions(id) ON DELETE CASCADE,
	source_type      TEXT NOT NULL CHECK(source_type IN (
		'icc_chart','icc_local_page','nfpa_map','doe_energy','state_agency','municipal_code',
		'fire_marshal','legislative','nahb','manual')),
	url              TEXT NOT NULL,
	label            TEXT,
	last_fetched     TIMESTAMPTZ,
	last_status_code INTEGER,
	content_hash     TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_source_urls_key
	ON source_urls(COALESCE(jurisdiction_id, 0), source_type, url);

CREATE TABLE IF NOT EXISTS code_adoptions (
	id              BIGSERIAL PRIMARY KEY,
	jurisdiction_id BIGINT NOT NULL REFERENCES jurisdictions(id) ON DELETE CASCADE,
	code_key        TEXT NOT NULL,
	code_full_name  TEXT NOT NULL,
	publishing_org  TEXT NOT NULL,
	edition_year    INTEGER,
	edition_label   TEXT,
	status          TEXT NOT NULL CHECK(status IN (
		'adopted','adopted_stretch','local_only','not_adopted','own_code','pending','superseded','withdrawn')),
	is_mandatory    BOOLEAN NOT NULL DEFAULT true,
	effective_date  TEXT,
	expiry_date     TEXT,
	supersedes_id   BIGINT REFERENCES code_adoptions(id),
	source_text     TEXT,
	source_id       BIGINT REFERENCES source_urls(id),
	ingest_run_id   BIGINT REFERENCES ingest_runs(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_code_adoptions_key
	ON code_adoptions(jurisdiction_id, code_key, COALESCE(edition_year, 0), status);
CREATE INDEX IF NOT EXISTS idx_code_adoptions_code ON code_adoptions(code_key);
CREATE INDEX IF NOT EXISTS idx_code_adoptions_status ON code_adoptions(status);

CREATE TABLE IF NOT EXISTS amendments (
	id               BIGSERIAL PRIMARY KEY,
	adoption_id      BIGINT NOT NULL REFERENCES code_adoptions(id) ON DELETE CASCADE,
	amendment_type   TEXT CHECK(amendment_type IN (
		'addition','modification','deletion','substitution','clarification','exception')),
	section_ref      TEXT,
	title            TEXT,
	description      TEXT NOT NULL,
	ordinance_number TEXT,
	ordinance_date   TEXT,
	source_id        BIGINT REFERENCES source_urls(id),
	ingest_run_id    BIGINT REFERENCES ingest_runs(id),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_amendments_key
	ON amendments(adoption_id, COALESCE(section_ref, ''), description);
`

// pgRunColumns reads the JSONB error list as text so scanRun can decode it.
var pgRunColumns = strings.Replace(runColumns, "errors", "errors::text", 1)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// inTx runs fn in a transaction. Concurrent writers racing on the same
// natural key surface as a unique violation on insert; the loser retries
// once and finds the winner's row on the second read.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.tryTx(ctx, fn)
		if !db.IsUniqueViolation(err) {
			return err
		}
	}
	return err
}

func (s *PostgresStore) tryTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) ResolveJurisdiction(ctx context.Context, key JurisdictionKey) (int64, bool, error) {
	if err := validateKey(key); err != nil {
		return 0, false, err
	}

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		created = false
		now := time.Now().UTC()
		err := tx.QueryRow(ctx,
			`SELECT id FROM jurisdictions
			WHERE state_abbr = $1 AND county_name IS NOT DISTINCT FROM $2 AND jurisdiction_name = $3
				AND jurisdiction_type = $4`,
			key.StateAbbr, key.County, key.Name, string(key.Type),
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx, `UPDATE jurisdictions SET updated_at = $1 WHERE id = $2`, now, id)
			return eris.Wrapf(err, "postgres: touch jurisdiction %d", id)
		case !errors.Is(err, pgx.ErrNoRows):
			return eris.Wrap(err, "postgres: find jurisdiction")
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO jurisdictions (state_abbr, state_name, county_name, jurisdiction_name, jurisdiction_type,
				has_own_code, home_rule, region, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			RETURNING id`,
			key.StateAbbr, key.StateName, key.County, key.Name, string(key.Type),
			key.HasOwnCode, key.HomeRule, regionFor(key.StateAbbr), now,
		).Scan(&id)
		created = err == nil
		return eris.Wrap(err, "postgres: insert jurisdiction")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *PostgresStore) UpsertAdoption(ctx context.Context, in AdoptionInput) (int64, bool, error) {
	if err := in.validate(); err != nil {
		return 0, false, err
	}
	meta := model.LookupCode(in.CodeKey)

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		created = false
		now := time.Now().UTC()
		err := tx.QueryRow(ctx,
			`SELECT id FROM code_adoptions
			WHERE jurisdiction_id = $1 AND code_key = $2 AND edition_year IS NOT DISTINCT FROM $3 AND status = $4`,
			in.JurisdictionID, in.CodeKey, in.EditionYear, string(in.Status),
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx,
				`UPDATE code_adoptions SET
					edition_label = COALESCE($1, edition_label),
					is_mandatory = $2,
					effective_date = COALESCE($3, effective_date),
					source_text = COALESCE($4, source_text),
					source_id = COALESCE($5, source_id),
					ingest_run_id = COALESCE($6, ingest_run_id),
					supersedes_id = COALESCE($7, supersedes_id),
					updated_at = $8
				WHERE id = $9`,
				in.EditionLabel, in.mandatory(), in.EffectiveDate, in.SourceText, in.SourceID,
				in.IngestRunID, in.SupersedesID, now, id,
			)
			return eris.Wrapf(err, "postgres: update adoption %d", id)
		case !errors.Is(err, pgx.ErrNoRows):
			return eris.Wrap(err, "postgres: find adoption")
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO code_adoptions (jurisdiction_id, code_key, code_full_name, publishing_org, edition_year,
				edition_label, status, is_mandatory, effective_date, supersedes_id, source_text, source_id,
				ingest_run_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			RETURNING id`,
			in.JurisdictionID, in.CodeKey, meta.FullName, meta.Org, in.EditionYear, in.EditionLabel,
			string(in.Status), in.mandatory(), in.EffectiveDate, in.SupersedesID, in.SourceText, in.SourceID,
			in.IngestRunID, now,
		).Scan(&id)
		created = err == nil
		return eris.Wrap(err, "postgres: insert adoption")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *PostgresStore) AddAmendment(ctx context.Context, in AmendmentInput) (int64, bool, error) {
	if in.AdoptionID <= 0 || in.Description == "" {
		return 0, false, eris.New("postgres: amendment needs an adoption and a description")
	}

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		created = false
		err := tx.QueryRow(ctx,
			`SELECT id FROM amendments
			WHERE adoption_id = $1 AND section_ref IS NOT DISTINCT FROM $2 AND description = $3`,
			in.AdoptionID, in.SectionRef, in.Description,
		).Scan(&id)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, pgx.ErrNoRows):
			return eris.Wrap(err, "postgres: find amendment")
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO amendments (adoption_id, amendment_type, section_ref, title, description,
				ordinance_number, ordinance_date, source_id, ingest_run_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			in.AdoptionID, model.StringOrNil(string(in.Type)), in.SectionRef, in.Title, in.Description,
			in.OrdinanceNumber, in.OrdinanceDate, in.SourceID, in.IngestRunID, time.Now().UTC(),
		).Scan(&id)
		created = err == nil
		return eris.Wrap(err, "postgres: insert amendment")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *PostgresStore) RegisterSource(ctx context.Context, in SourceInput) (int64, error) {
	if in.URL == "" {
		return 0, eris.New("postgres: source has no url")
	}

	var id int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRow(ctx,
			`SELECT id FROM source_urls
			WHERE jurisdiction_id IS NOT DISTINCT FROM $1 AND source_type = $2 AND url = $3`,
			in.JurisdictionID, string(in.Type), in.URL,
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx,
				`UPDATE source_urls SET
					label = COALESCE($1, label),
					last_fetched = $2,
					last_status_code = COALESCE($3, last_status_code),
					content_hash = COALESCE($4, content_hash)
				WHERE id = $5`,
				in.Label, now, in.StatusCode, in.ContentHash, id,
			)
			return eris.Wrapf(err, "postgres: refresh source %d", id)
		case !errors.Is(err, pgx.ErrNoRows):
			return eris.Wrap(err, "postgres: find source")
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO source_urls (jurisdiction_id, source_type, url, label, last_fetched, last_status_code,
				content_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $5)
			RETURNING id`,
			in.JurisdictionID, string(in.Type), in.URL, in.Label, now, in.StatusCode, in.ContentHash,
		).Scan(&id)
		return eris.Wrap(err, "postgres: insert source")
	})
	return id, err
}

func (s *PostgresStore) StartRun(ctx context.Context, runID, scraper string) (*model.IngestRun, error) {
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ingest_runs (run_id, scraper_name, started_at, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		runID, scraper, now, string(model.RunRunning),
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start run %s", scraper)
	}
	return &model.IngestRun{
		ID:          id,
		RunID:       runID,
		ScraperName: scraper,
		StartedAt:   now,
		Status:      model.RunRunning,
		Errors:      []string{},
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id int64, r RunResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	errs, err := encodeErrors(r.Errors)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET finished_at = $1, status = $2, rows_inserted = $3, rows_updated = $4,
			rows_skipped = $5, errors = $6::jsonb, notes = COALESCE($7, notes)
		WHERE id = $8 AND status = 'running'`,
		time.Now().UTC(), string(r.Status), r.Inserted, r.Updated, r.Skipped, errs, r.Notes, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %d", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists int
	err = s.pool.QueryRow(ctx, `SELECT 1 FROM ingest_runs WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: run %d", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check run %d", id)
	}
	return eris.Wrapf(ErrRunClosed, "postgres: run %d", id)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.IngestRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM ingest_runs WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	return r, eris.Wrapf(err, "postgres: get run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRunColumns+` FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DataSources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT scraper_name FROM ingest_runs WHERE status IN ('success', 'partial') ORDER BY scraper_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: data sources")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan data source")
		}
		out = append(out, name)
	}
	return out, eris.Wrap(rows.Err(), "postgres: data sources iterate")
}

// tsQuery turns free text into a prefix-matching tsquery of ANDed terms.
func tsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		f = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if f != "" {
			terms = append(terms, f+":*")
		}
	}
	return strings.Join(terms, " & ")
}

func (s *PostgresStore) SearchJurisdictions(ctx context.Context, query string, limit int) ([]model.Jurisdiction, error) {
	if limit <= 0 {
		limit = 20
	}
	q := tsQuery(query)
	if q == "" {
		return s.queryJurisdictions(ctx,
			`SELECT `+jurisdictionColumns+` FROM jurisdictions ORDER BY state_abbr, jurisdiction_name, id LIMIT $1`, limit)
	}
	return s.queryJurisdictions(ctx,
		`SELECT `+jurisdictionColumns+` FROM jurisdictions
		WHERE to_tsvector('simple', jurisdiction_name || ' ' || COALESCE(county_name, '') || ' ' || state_name || ' ' || state_abbr)
			@@ to_tsquery('simple', $1)
		ORDER BY state_abbr, jurisdiction_name, id
		LIMIT $2`, q, limit)
}

func (s *PostgresStore) ListJurisdictions(ctx context.Context) ([]model.Jurisdiction, error) {
	return s.queryJurisdictions(ctx,
		`SELECT `+jurisdictionColumns+` FROM jurisdictions ORDER BY state_abbr, jurisdiction_type, jurisdiction_name, id`)
}

func (s *PostgresStore) queryJurisdictions(ctx context.Context, query string, args ...any) ([]model.Jurisdiction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query jurisdictions")
	}
	defer rows.Close()

	var out []model.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan jurisdiction")
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "postgres: jurisdictions iterate")
}

func (s *PostgresStore) ListAdoptions(ctx context.Context, includeTerminal bool) ([]model.CodeAdoption, error) {
	query := `SELECT ` + adoptionColumns + ` FROM code_adoptions`
	if !includeTerminal {
		query += ` WHERE status NOT IN ('superseded', 'withdrawn')`
	}
	query += ` ORDER BY jurisdiction_id, code_key, updated_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list adoptions")
	}
	defer rows.Close()

	var out []model.CodeAdoption
	for rows.Next() {
		a, err := scanAdoption(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan adoption")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list adoptions iterate")
}

func (s *PostgresStore) ListAmendments(ctx context.Context) ([]model.Amendment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+amendmentColumns+` FROM amendments ORDER BY adoption_id, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list amendments")
	}
	defer rows.Close()

	var out []model.Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan amendment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list amendments iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM jurisdictions), (SELECT COUNT(*) FROM code_adoptions),
			(SELECT COUNT(*) FROM amendments)`,
	).Scan(&st.TotalJurisdictions, &st.TotalAdoptions, &st.TotalAmendments)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}

	if st.ByType, err = s.counts(ctx, statsByTypeQuery); err != nil {
		return nil, err
	}
	if st.CodeCoverage, err = s.counts(ctx, statsCoverageQuery); err != nil {
		return nil, err
	}
	if st.ByStatus, err = s.counts(ctx, statsByStatusQuery); err != nil {
		return nil, err
	}
	if st.RecentRuns, err = s.ListRuns(ctx, 10); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) counts(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.N); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

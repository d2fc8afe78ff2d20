package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ahj-registry/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Writes are
// serialized through mu; readers run concurrently under WAL.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens a SQLite database at path with WAL journaling and foreign
// keys enforced on every pooled connection.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL UNIQUE,
	scraper_name  TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME,
	status        TEXT NOT NULL CHECK(status IN ('running','success','partial','failed')),
	rows_inserted INTEGER NOT NULL DEFAULT 0,
	rows_updated  INTEGER NOT NULL DEFAULT 0,
	rows_skipped  INTEGER NOT NULL DEFAULT 0,
	errors        TEXT,
	notes         TEXT
);

CREATE TABLE IF NOT EXISTS jurisdictions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
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
	has_own_code      INTEGER NOT NULL DEFAULT 0,
	home_rule         INTEGER NOT NULL DEFAULT 0,
	population        INTEGER,
	region            TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_jurisdictions_key
	ON jurisdictions(state_abbr, COALESCE(county_name, ''), jurisdiction_name, jurisdiction_type);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_state ON jurisdictions(state_abbr);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_type ON jurisdictions(jurisdiction_type);
CREATE INDEX IF NOT EXISTS idx_jurisdictions_fips ON jurisdictions(fips_place);

CREATE TABLE IF NOT EXISTS source_urls (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	jurisdiction_id  INTEGER REFERENCES jurisdictions(id) ON DELETE CASCADE,
	source_type      TEXT NOT NULL CHECK(source_type IN (
		'icc_chart','icc_local_page','nfpa_map','doe_energy','state_agency','municipal_code',
		'fire_marshal','legislative','nahb','manual')),
	url              TEXT NOT NULL,
	label            TEXT,
	last_fetched     DATETIME,
	last_status_code INTEGER,
	content_hash     TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_source_urls_key
	ON source_urls(COALESCE(jurisdiction_id, 0), source_type, url);

CREATE TABLE IF NOT EXISTS code_adoptions (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	jurisdiction_id INTEGER NOT NULL REFERENCES jurisdictions(id) ON DELETE CASCADE,
	code_key        TEXT NOT NULL,
	code_full_name  TEXT NOT NULL,
	publishing_org  TEXT NOT NULL,
	edition_year    INTEGER,
	edition_label   TEXT,
	status          TEXT NOT NULL CHECK(status IN (
		'adopted','adopted_stretch','local_only','not_adopted','own_code','pending','superseded','withdrawn')),
	is_mandatory    INTEGER NOT NULL DEFAULT 1,
	effective_date  TEXT,
	expiry_date     TEXT,
	supersedes_id   INTEGER REFERENCES code_adoptions(id),
	source_text     TEXT,
	source_id       INTEGER REFERENCES source_urls(id),
	ingest_run_id   INTEGER REFERENCES ingest_runs(id),
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_code_adoptions_key
	ON code_adoptions(jurisdiction_id, code_key, COALESCE(edition_year, 0), status);
CREATE INDEX IF NOT EXISTS idx_code_adoptions_code ON code_adoptions(code_key);
CREATE INDEX IF NOT EXISTS idx_code_adoptions_status ON code_adoptions(status);

CREATE TABLE IF NOT EXISTS amendments (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	adoption_id      INTEGER NOT NULL REFERENCES code_adoptions(id) ON DELETE CASCADE,
	amendment_type   TEXT CHECK(amendment_type IN (
		'addition','modification','deletion','substitution','clarification','exception')),
	section_ref      TEXT,
	title            TEXT,
	description      TEXT NOT NULL,
	ordinance_number TEXT,
	ordinance_date   TEXT,
	source_id        INTEGER REFERENCES source_urls(id),
	ingest_run_id    INTEGER REFERENCES ingest_runs(id),
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_amendments_key
	ON amendments(adoption_id, COALESCE(section_ref, ''), description);

CREATE VIRTUAL TABLE IF NOT EXISTS jurisdictions_fts USING fts5(
	jurisdiction_name, county_name, state_name, state_abbr,
	content='jurisdictions', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS jurisdictions_ai AFTER INSERT ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(rowid, jurisdiction_name, county_name, state_name, state_abbr)
	VALUES (new.id, new.jurisdiction_name, new.county_name, new.state_name, new.state_abbr);
END;

CREATE TRIGGER IF NOT EXISTS jurisdictions_ad AFTER DELETE ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(jurisdictions_fts, rowid, jurisdiction_name, county_name, state_name, state_abbr)
	VALUES ('delete', old.id, old.jurisdiction_name, old.county_name, old.state_name, old.state_abbr);
END;

CREATE TRIGGER IF NOT EXISTS jurisdictions_au AFTER UPDATE OF jurisdiction_name, county_name, state_name, state_abbr
ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(jurisdictions_fts, rowid, jurisdiction_name, county_name, state_name, state_abbr)
	VALUES ('delete', old.id, old.jurisdiction_name, old.county_name, old.state_name, old.state_abbr);
	INSERT INTO jurisdictions_fts(rowid, jurisdiction_name, county_name, state_name, state_abbr)
	VALUES (new.id, new.jurisdiction_name, new.county_name, new.state_name, new.state_abbr);
END;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a write transaction under the writer lock.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ResolveJurisdiction(ctx context.Context, key JurisdictionKey) (int64, bool, error) {
	if err := validateKey(key); err != nil {
		return 0, false, err
	}

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM jurisdictions
			WHERE state_abbr = ? AND county_name IS ? AND jurisdiction_name = ? AND jurisdiction_type = ?`,
			key.StateAbbr, key.County, key.Name, string(key.Type),
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx, `UPDATE jurisdictions SET updated_at = ? WHERE id = ?`, now, id)
			return eris.Wrapf(err, "sqlite: touch jurisdiction %d", id)
		case !errors.Is(err, sql.ErrNoRows):
			return eris.Wrap(err, "sqlite: find jurisdiction")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO jurisdictions (state_abbr, state_name, county_name, jurisdiction_name, jurisdiction_type,
				has_own_code, home_rule, region, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key.StateAbbr, key.StateName, key.County, key.Name, string(key.Type),
			key.HasOwnCode, key.HomeRule, regionFor(key.StateAbbr), now, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert jurisdiction")
		}
		id, err = res.LastInsertId()
		created = true
		return eris.Wrap(err, "sqlite: jurisdiction id")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *SQLiteStore) UpsertAdoption(ctx context.Context, in AdoptionInput) (int64, bool, error) {
	if err := in.validate(); err != nil {
		return 0, false, err
	}
	meta := model.LookupCode(in.CodeKey)

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM code_adoptions
			WHERE jurisdiction_id = ? AND code_key = ? AND edition_year IS ? AND status = ?`,
			in.JurisdictionID, in.CodeKey, in.EditionYear, string(in.Status),
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE code_adoptions SET
					edition_label = COALESCE(?, edition_label),
					is_mandatory = ?,
					effective_date = COALESCE(?, effective_date),
					source_text = COALESCE(?, source_text),
					source_id = COALESCE(?, source_id),
					ingest_run_id = COALESCE(?, ingest_run_id),
					supersedes_id = COALESCE(?, supersedes_id),
					updated_at = ?
				WHERE id = ?`,
				in.EditionLabel, in.mandatory(), in.EffectiveDate, in.SourceText, in.SourceID,
				in.IngestRunID, in.SupersedesID, now, id,
			)
			return eris.Wrapf(err, "sqlite: update adoption %d", id)
		case !errors.Is(err, sql.ErrNoRows):
			return eris.Wrap(err, "sqlite: find adoption")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO code_adoptions (jurisdiction_id, code_key, code_full_name, publishing_org, edition_year,
				edition_label, status, is_mandatory, effective_date, supersedes_id, source_text, source_id,
				ingest_run_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.JurisdictionID, in.CodeKey, meta.FullName, meta.Org, in.EditionYear, in.EditionLabel,
			string(in.Status), in.mandatory(), in.EffectiveDate, in.SupersedesID, in.SourceText, in.SourceID,
			in.IngestRunID, now, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert adoption")
		}
		id, err = res.LastInsertId()
		created = true
		return eris.Wrap(err, "sqlite: adoption id")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *SQLiteStore) AddAmendment(ctx context.Context, in AmendmentInput) (int64, bool, error) {
	if in.AdoptionID <= 0 || in.Description == "" {
		return 0, false, eris.New("sqlite: amendment needs an adoption and a description")
	}

	var (
		id      int64
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM amendments WHERE adoption_id = ? AND section_ref IS ? AND description = ?`,
			in.AdoptionID, in.SectionRef, in.Description,
		).Scan(&id)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return eris.Wrap(err, "sqlite: find amendment")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO amendments (adoption_id, amendment_type, section_ref, title, description,
				ordinance_number, ordinance_date, source_id, ingest_run_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.AdoptionID, model.StringOrNil(string(in.Type)), in.SectionRef, in.Title, in.Description,
			in.OrdinanceNumber, in.OrdinanceDate, in.SourceID, in.IngestRunID, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert amendment")
		}
		id, err = res.LastInsertId()
		created = true
		return eris.Wrap(err, "sqlite: amendment id")
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *SQLiteStore) RegisterSource(ctx context.Context, in SourceInput) (int64, error) {
	if in.URL == "" {
		return 0, eris.New("sqlite: source has no url")
	}

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM source_urls WHERE jurisdiction_id IS ? AND source_type = ? AND url = ?`,
			in.JurisdictionID, string(in.Type), in.URL,
		).Scan(&id)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE source_urls SET
					label = COALESCE(?, label),
					last_fetched = ?,
					last_status_code = COALESCE(?, last_status_code),
					content_hash = COALESCE(?, content_hash)
				WHERE id = ?`,
				in.Label, now, in.StatusCode, in.ContentHash, id,
			)
			return eris.Wrapf(err, "sqlite: refresh source %d", id)
		case !errors.Is(err, sql.ErrNoRows):
			return eris.Wrap(err, "sqlite: find source")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO source_urls (jurisdiction_id, source_type, url, label, last_fetched, last_status_code,
				content_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.JurisdictionID, string(in.Type), in.URL, in.Label, now, in.StatusCode, in.ContentHash, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert source")
		}
		id, err = res.LastInsertId()
		return eris.Wrap(err, "sqlite: source id")
	})
	return id, err
}

func (s *SQLiteStore) StartRun(ctx context.Context, runID, scraper string) (*model.IngestRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (run_id, scraper_name, started_at, status, errors) VALUES (?, ?, ?, ?, '[]')`,
		runID, scraper, now, string(model.RunRunning),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start run %s", scraper)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: run id")
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

func (s *SQLiteStore) FinishRun(ctx context.Context, id int64, r RunResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	errs, err := encodeErrors(r.Errors)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET finished_at = ?, status = ?, rows_inserted = ?, rows_updated = ?,
			rows_skipped = ?, errors = ?, notes = COALESCE(?, notes)
		WHERE id = ? AND status = 'running'`,
		time.Now().UTC(), string(r.Status), r.Inserted, r.Updated, r.Skipped, errs, r.Notes, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM ingest_runs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: run %d", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check run %d", id)
	}
	return eris.Wrapf(ErrRunClosed, "sqlite: run %d", id)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.IngestRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingest_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	return r, eris.Wrapf(err, "sqlite: get run %s", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) DataSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT scraper_name FROM ingest_runs WHERE status IN ('success', 'partial') ORDER BY scraper_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: data sources")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan data source")
		}
		out = append(out, name)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: data sources iterate")
}

func (s *SQLiteStore) SearchJurisdictions(ctx context.Context, query string, limit int) ([]model.Jurisdiction, error) {
	if limit <= 0 {
		limit = 20
	}
	q := ftsQuery(query)
	if q == "" {
		return s.queryJurisdictions(ctx,
			`SELECT `+jurisdictionColumns+` FROM jurisdictions ORDER BY state_abbr, jurisdiction_name, id LIMIT ?`, limit)
	}
	return s.queryJurisdictions(ctx,
		`SELECT `+qualified("j", jurisdictionColumns)+`
		FROM jurisdictions_fts JOIN jurisdictions j ON j.id = jurisdictions_fts.rowid
		WHERE jurisdictions_fts MATCH ?
		ORDER BY rank, j.id
		LIMIT ?`, q, limit)
}

func (s *SQLiteStore) ListJurisdictions(ctx context.Context) ([]model.Jurisdiction, error) {
	return s.queryJurisdictions(ctx,
		`SELECT `+jurisdictionColumns+` FROM jurisdictions ORDER BY state_abbr, jurisdiction_type, jurisdiction_name, id`)
}

func (s *SQLiteStore) queryJurisdictions(ctx context.Context, query string, args ...any) ([]model.Jurisdiction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query jurisdictions")
	}
	defer rows.Close()

	var out []model.Jurisdiction
	for rows.Next() {
		j, err := scanJurisdiction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan jurisdiction")
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: jurisdictions iterate")
}

func (s *SQLiteStore) ListAdoptions(ctx context.Context, includeTerminal bool) ([]model.CodeAdoption, error) {
	query := `SELECT ` + adoptionColumns + ` FROM code_adoptions`
	if !includeTerminal {
		query += ` WHERE status NOT IN ('superseded', 'withdrawn')`
	}
	query += ` ORDER BY jurisdiction_id, code_key, updated_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list adoptions")
	}
	defer rows.Close()

	var out []model.CodeAdoption
	for rows.Next() {
		a, err := scanAdoption(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan adoption")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list adoptions iterate")
}

func (s *SQLiteStore) ListAmendments(ctx context.Context) ([]model.Amendment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+amendmentColumns+` FROM amendments ORDER BY adoption_id, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list amendments")
	}
	defer rows.Close()

	var out []model.Amendment
	for rows.Next() {
		a, err := scanAmendment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan amendment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list amendments iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	for _, c := range []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM jurisdictions`, &st.TotalJurisdictions},
		{`SELECT COUNT(*) FROM code_adoptions`, &st.TotalAdoptions},
		{`SELECT COUNT(*) FROM amendments`, &st.TotalAmendments},
	} {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, eris.Wrap(err, "sqlite: stats totals")
		}
	}

	var err error
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

func (s *SQLiteStore) counts(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.N); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

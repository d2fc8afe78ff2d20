package model

import "time"

// Jurisdiction is a governmental entity with authority to adopt codes.
type Jurisdiction struct {
	ID         int64            `json:"id"`
	FIPSState  *string          `json:"fips_state,omitempty"`
	FIPSCounty *string          `json:"fips_county,omitempty"`
	FIPSPlace  *string          `json:"fips_place,omitempty"`
	StateAbbr  string           `json:"state_abbr"`
	StateName  string           `json:"state_name"`
	CountyName *string          `json:"county_name"`
	Name       string           `json:"jurisdiction_name"`
	Type       JurisdictionType `json:"jurisdiction_type"`
	HasOwnCode bool             `json:"has_own_code"`
	HomeRule   bool             `json:"home_rule"`
	Population *int64           `json:"population,omitempty"`
	Region     *string          `json:"region,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CodeAdoption records that a jurisdiction enforces an edition of a model code.
type CodeAdoption struct {
	ID             int64          `json:"id"`
	JurisdictionID int64          `json:"jurisdiction_id"`
	CodeKey        string         `json:"code_key"`
	CodeFullName   string         `json:"code_full_name"`
	PublishingOrg  string         `json:"publishing_org"`
	EditionYear    *int           `json:"edition_year"`
	EditionLabel   *string        `json:"edition_label"`
	Status         AdoptionStatus `json:"status"`
	IsMandatory    bool           `json:"is_mandatory"`
	EffectiveDate  *string        `json:"effective_date"`
	ExpiryDate     *string        `json:"expiry_date,omitempty"`
	SupersedesID   *int64         `json:"supersedes_id,omitempty"`
	SourceText     *string        `json:"source_text,omitempty"`
	SourceID       *int64         `json:"source_id,omitempty"`
	IngestRunID    *int64         `json:"ingest_run_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Amendment is a local modification to an adopted code.
type Amendment struct {
	ID              int64         `json:"id"`
	AdoptionID      int64         `json:"adoption_id"`
	Type            AmendmentType `json:"amendment_type"`
	SectionRef      *string       `json:"section_ref"`
	Title           *string       `json:"title"`
	Description     string        `json:"description"`
	OrdinanceNumber *string       `json:"ordinance_number"`
	OrdinanceDate   *string       `json:"ordinance_date"`
	SourceID        *int64        `json:"source_id,omitempty"`
	IngestRunID     *int64        `json:"ingest_run_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// SourceURL is a provenance pointer to a fetched document.
type SourceURL struct {
	ID             int64      `json:"id"`
	JurisdictionID *int64     `json:"jurisdiction_id,omitempty"`
	SourceType     SourceType `json:"source_type"`
	URL            string     `json:"url"`
	Label          *string    `json:"label,omitempty"`
	LastFetched    *time.Time `json:"last_fetched,omitempty"`
	LastStatusCode *int       `json:"last_status_code,omitempty"`
	ContentHash    *string    `json:"content_hash,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IngestRun is the ledger entry for one ingestion attempt.
type IngestRun struct {
	ID           int64      `json:"id"`
	RunID        string     `json:"run_id"`
	ScraperName  string     `json:"scraper_name"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       RunStatus  `json:"status"`
	RowsInserted int        `json:"rows_inserted"`
	RowsUpdated  int        `json:"rows_updated"`
	RowsSkipped  int        `json:"rows_skipped"`
	Errors       []string   `json:"errors"`
	Notes        *string    `json:"notes,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// StringOrNil returns nil for an empty string.
func StringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

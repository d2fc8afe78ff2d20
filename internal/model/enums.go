package model

// JurisdictionType classifies a governmental entity.
type JurisdictionType string

// Jurisdiction types persisted in jurisdictions.jurisdiction_type.
const (
	TypeState                  JurisdictionType = "state"
	TypeCounty                 JurisdictionType = "county"
	TypeCity                   JurisdictionType = "city"
	TypeTown                   JurisdictionType = "town"
	TypeVillage                JurisdictionType = "village"
	TypeTownship               JurisdictionType = "township"
	TypeBorough                JurisdictionType = "borough"
	TypeFireDistrict           JurisdictionType = "fire_district"
	TypeUtilityDistrict        JurisdictionType = "utility_district"
	TypeSpecialDistrict        JurisdictionType = "special_district"
	TypeTribal                 JurisdictionType = "tribal"
	TypeTerritory              JurisdictionType = "territory"
	TypeConsolidatedCityCounty JurisdictionType = "consolidated_city_county"
)

// JurisdictionTypes lists every valid jurisdiction type in schema order.
var JurisdictionTypes = []JurisdictionType{
	TypeState, TypeCounty, TypeCity, TypeTown, TypeVillage, TypeTownship,
	TypeBorough, TypeFireDistrict, TypeUtilityDistrict, TypeSpecialDistrict,
	TypeTribal, TypeTerritory, TypeConsolidatedCityCounty,
}

// Valid reports whether t is a known jurisdiction type.
func (t JurisdictionType) Valid() bool {
	for _, v := range JurisdictionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsMunicipal reports whether t is a city-like local government.
func (t JurisdictionType) IsMunicipal() bool {
	switch t {
	case TypeCity, TypeTown, TypeVillage, TypeTownship, TypeBorough, TypeConsolidatedCityCounty:
		return true
	}
	return false
}

// AdoptionStatus is the state of a code adoption fact.
type AdoptionStatus string

// Adoption statuses persisted in code_adoptions.status.
const (
	StatusAdopted        AdoptionStatus = "adopted"
	StatusAdoptedStretch AdoptionStatus = "adopted_stretch"
	StatusLocalOnly      AdoptionStatus = "local_only"
	StatusNotAdopted     AdoptionStatus = "not_adopted"
	StatusOwnCode        AdoptionStatus = "own_code"
	StatusPending        AdoptionStatus = "pending"
	StatusSuperseded     AdoptionStatus = "superseded"
	StatusWithdrawn      AdoptionStatus = "withdrawn"
)

// AdoptionStatuses lists every valid adoption status.
var AdoptionStatuses = []AdoptionStatus{
	StatusAdopted, StatusAdoptedStretch, StatusLocalOnly, StatusNotAdopted,
	StatusOwnCode, StatusPending, StatusSuperseded, StatusWithdrawn,
}

// Valid reports whether s is a known adoption status.
func (s AdoptionStatus) Valid() bool {
	for _, v := range AdoptionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether s removes the adoption from the default view.
func (s AdoptionStatus) Terminal() bool {
	return s == StatusSuperseded || s == StatusWithdrawn
}

// AmendmentType classifies a local amendment.
type AmendmentType string

// Amendment types persisted in amendments.amendment_type.
const (
	AmendAddition      AmendmentType = "addition"
	AmendModification  AmendmentType = "modification"
	AmendDeletion      AmendmentType = "deletion"
	AmendSubstitution  AmendmentType = "substitution"
	AmendClarification AmendmentType = "clarification"
	AmendException     AmendmentType = "exception"
)

// SourceType is the publisher class of a provenance URL.
type SourceType string

// Source types persisted in source_urls.source_type.
const (
	SourceICCChart      SourceType = "icc_chart"
	SourceICCLocalPage  SourceType = "icc_local_page"
	SourceNFPAMap       SourceType = "nfpa_map"
	SourceDOEEnergy     SourceType = "doe_energy"
	SourceStateAgency   SourceType = "state_agency"
	SourceMunicipalCode SourceType = "municipal_code"
	SourceFireMarshal   SourceType = "fire_marshal"
	SourceLegislative   SourceType = "legislative"
	SourceNAHB          SourceType = "nahb"
	SourceManual        SourceType = "manual"
)

// RunStatus is the lifecycle state of an ingest run.
type RunStatus string

// Run statuses persisted in ingest_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether the run has been closed.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunPartial || s == RunFailed
}

package model

import (
	"sort"
	"strings"
)

// CodeMeta describes a model code family.
type CodeMeta struct {
	Key      string
	FullName string
	Org      string
}

var codeCatalog = map[string]CodeMeta{
	"IBC":         {"IBC", "International Building Code", "ICC"},
	"IRC":         {"IRC", "International Residential Code", "ICC"},
	"IFC":         {"IFC", "International Fire Code", "ICC"},
	"IMC":         {"IMC", "International Mechanical Code", "ICC"},
	"IPC":         {"IPC", "International Plumbing Code", "ICC"},
	"IPSDC":       {"IPSDC", "Int'l Private Sewage Disposal Code", "ICC"},
	"IFGC":        {"IFGC", "International Fuel Gas Code", "ICC"},
	"IgCC":        {"IgCC", "International Green Construction Code", "ICC"},
	"IECC":        {"IECC", "Int'l Energy Conservation Code", "ICC"},
	"IECC-R":      {"IECC-R", "Int'l Energy Conservation Code (Residential)", "ICC"},
	"IECC-C":      {"IECC-C", "Int'l Energy Conservation Code (Commercial)", "ICC"},
	"IPMC":        {"IPMC", "Int'l Property Maintenance Code", "ICC"},
	"IEBC":        {"IEBC", "Int'l Existing Building Code", "ICC"},
	"ISPSC":       {"ISPSC", "Int'l Swimming Pool & Spa Code", "ICC"},
	"ICCPC":       {"ICCPC", "Int'l Code Council Performance Code", "ICC"},
	"IWUIC":       {"IWUIC", "Int'l Wildland-Urban Interface Code", "ICC"},
	"IZC":         {"IZC", "International Zoning Code", "ICC"},
	"ICC700":      {"ICC700", "ICC 700 National Green Building Standard", "ICC"},
	"NEC":         {"NEC", "National Electrical Code (NFPA 70)", "NFPA"},
	"NFPA1":       {"NFPA1", "NFPA 1 Fire Code", "NFPA"},
	"UPC":         {"UPC", "Uniform Plumbing Code", "IAPMO"},
	"UMC":         {"UMC", "Uniform Mechanical Code", "IAPMO"},
	"ASHRAE-90.1": {"ASHRAE-90.1", "ASHRAE Standard 90.1 (Commercial Energy)", "ASHRAE"},
}

// LookupCode returns catalog metadata for a code key. Unknown keys get the
// key as their name and an "unknown" publisher.
func LookupCode(key string) CodeMeta {
	if m, ok := codeCatalog[key]; ok {
		return m
	}
	return CodeMeta{Key: key, FullName: key, Org: "unknown"}
}

// State is a state or territory with its postal abbreviation.
type State struct {
	Name   string
	Abbr   string
	Region string
}

var states = []State{
	{"Alabama", "AL", "South"}, {"Alaska", "AK", "West"}, {"Arizona", "AZ", "West"},
	{"Arkansas", "AR", "South"}, {"California", "CA", "West"}, {"Colorado", "CO", "West"},
	{"Connecticut", "CT", "Northeast"}, {"Delaware", "DE", "South"},
	{"District of Columbia", "DC", "South"}, {"Florida", "FL", "South"},
	{"Georgia", "GA", "South"}, {"Hawaii", "HI", "West"}, {"Idaho", "ID", "West"},
	{"Illinois", "IL", "Midwest"}, {"Indiana", "IN", "Midwest"}, {"Iowa", "IA", "Midwest"},
	{"Kansas", "KS", "Midwest"}, {"Kentucky", "KY", "South"}, {"Louisiana", "LA", "South"},
	{"Maine", "ME", "Northeast"}, {"Maryland", "MD", "South"},
	{"Massachusetts", "MA", "Northeast"}, {"Michigan", "MI", "Midwest"},
	{"Minnesota", "MN", "Midwest"}, {"Mississippi", "MS", "South"},
	{"Missouri", "MO", "Midwest"}, {"Montana", "MT", "West"}, {"Nebraska", "NE", "Midwest"},
	{"Nevada", "NV", "West"}, {"New Hampshire", "NH", "Northeast"},
	{"New Jersey", "NJ", "Northeast"}, {"New Mexico", "NM", "West"},
	{"New York", "NY", "Northeast"}, {"North Carolina", "NC", "South"},
	{"North Dakota", "ND", "Midwest"}, {"Ohio", "OH", "Midwest"}, {"Oklahoma", "OK", "South"},
	{"Oregon", "OR", "West"}, {"Pennsylvania", "PA", "Northeast"},
	{"Rhode Island", "RI", "Northeast"}, {"South Carolina", "SC", "South"},
	{"South Dakota", "SD", "Midwest"}, {"Tennessee", "TN", "South"}, {"Texas", "TX", "South"},
	{"Utah", "UT", "West"}, {"Vermont", "VT", "Northeast"}, {"Virginia", "VA", "South"},
	{"Washington", "WA", "West"}, {"West Virginia", "WV", "South"},
	{"Wisconsin", "WI", "Midwest"}, {"Wyoming", "WY", "West"},
	{"Guam", "GU", "Territory"}, {"Puerto Rico", "PR", "Territory"},
	{"U.S. Virgin Islands", "VI", "Territory"}, {"American Samoa", "AS", "Territory"},
	{"Northern Mariana Islands", "MP", "Territory"},
}

var (
	statesByName = map[string]State{}
	statesByAbbr = map[string]State{}
	// stateNamesLongestFirst keeps "West Virginia" ahead of "Virginia" for prefix matching.
	stateNamesLongestFirst []string
)

func init() {
	for _, s := range states {
		statesByName[strings.ToLower(s.Name)] = s
		statesByAbbr[s.Abbr] = s
		stateNamesLongestFirst = append(stateNamesLongestFirst, s.Name)
	}
	sort.SliceStable(stateNamesLongestFirst, func(i, j int) bool {
		return len(stateNamesLongestFirst[i]) > len(stateNamesLongestFirst[j])
	})
}

// StateByName finds a state by its full name, case-insensitively.
func StateByName(name string) (State, bool) {
	s, ok := statesByName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// StateByAbbr finds a state by its postal abbreviation.
func StateByAbbr(abbr string) (State, bool) {
	s, ok := statesByAbbr[strings.ToUpper(strings.TrimSpace(abbr))]
	return s, ok
}

// StateNames returns every known state name, longest first.
func StateNames() []string {
	out := make([]string, len(stateNamesLongestFirst))
	copy(out, stateNamesLongestFirst)
	return out
}

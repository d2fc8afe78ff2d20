// Package ordinance extracts code adoption facts, amendments and ordinance
// metadata from free-form municipal code text.
package ordinance

import (
	"regexp"

	"github.com/sells-group/ahj-registry/internal/model"
)

// Rule maps a code key to the patterns that mention an edition of it. The
// first non-empty capture group of a match is the edition year.
type Rule struct {
	Code     string
	Patterns []*regexp.Regexp
}

// AmendmentRule recognises one kind of amendment phrasing.
type AmendmentRule struct {
	Pattern *regexp.Regexp
	Type    model.AmendmentType
}

func ci(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// DefaultRules is the code detection table, in reporting order.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "IBC", Patterns: []*regexp.Regexp{
			ci(`International\s+Building\s+Code[,\s]+(\d{4})\s+Edition`),
			ci(`\bIBC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Building\s+Code`),
		}},
		{Code: "IRC", Patterns: []*regexp.Regexp{
			ci(`International\s+Residential\s+Code[,\s]+(\d{4})`),
			ci(`\bIRC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Residential\s+Code`),
		}},
		{Code: "IFC", Patterns: []*regexp.Regexp{
			ci(`International\s+Fire\s+Code[,\s]+(\d{4})`),
			ci(`\bIFC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Fire\s+Code`),
		}},
		{Code: "NEC", Patterns: []*regexp.Regexp{
			ci(`National\s+Electrical\s+Code[,\s]+(\d{4})`),
			ci(`NFPA\s*70[,\s]+(\d{4})`),
			ci(`\bNEC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+National\s+Electrical\s+Code`),
		}},
		{Code: "IMC", Patterns: []*regexp.Regexp{
			ci(`International\s+Mechanical\s+Code[,\s]+(\d{4})`),
			ci(`\bIMC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Mechanical\s+Code`),
		}},
		{Code: "IPC", Patterns: []*regexp.Regexp{
			ci(`International\s+Plumbing\s+Code[,\s]+(\d{4})`),
			ci(`\bIPC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Plumbing\s+Code`),
		}},
		{Code: "IECC", Patterns: []*regexp.Regexp{
			ci(`International\s+Energy\s+Conservation\s+Code[,\s]+(\d{4})`),
			ci(`\bIECC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Energy\s+Conservation\s+Code`),
		}},
		{Code: "IEBC", Patterns: []*regexp.Regexp{
			ci(`International\s+Existing\s+Building\s+Code[,\s]+(\d{4})`),
			ci(`\bIEBC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Existing\s+Building\s+Code`),
		}},
		{Code: "IFGC", Patterns: []*regexp.Regexp{
			ci(`International\s+Fuel\s+Gas\s+Code[,\s]+(\d{4})`),
			ci(`\bIFGC[,\s]+(\d{4})`),
			ci(`(\d{4})\s+International\s+Fuel\s+Gas\s+Code`),
		}},
		{Code: "NFPA1", Patterns: []*regexp.Regexp{
			ci(`NFPA\s*1[,\s]+(\d{4})`),
			ci(`NFPA\s*1\s+Fire\s+Code[,\s]+(\d{4})`),
		}},
		{Code: "UPC", Patterns: []*regexp.Regexp{
			ci(`Uniform\s+Plumbing\s+Code[,\s]+(\d{4})`),
			ci(`\bUPC[,\s]+(\d{4})`),
		}},
		{Code: "UMC", Patterns: []*regexp.Regexp{
			ci(`Uniform\s+Mechanical\s+Code[,\s]+(\d{4})`),
			ci(`\bUMC[,\s]+(\d{4})`),
		}},
	}
}

// DefaultAmendmentRules recognise amendment phrasing. Types follow the verb.
func DefaultAmendmentRules() []AmendmentRule {
	return []AmendmentRule{
		{Pattern: ci(`(?:amended|modified|revised)\s+(?:as\s+follows|:)[^.]+\.`), Type: model.AmendModification},
		{Pattern: ci(`(?:deleted)\s+(?:as\s+follows|:)[^.]+\.`), Type: model.AmendDeletion},
		{Pattern: ci(`(?:added)\s+(?:as\s+follows|:)[^.]+\.`), Type: model.AmendAddition},
		{Pattern: ci(`Section\s+[\d.]+\s+(?:is\s+)?amended\s+to\s+read`), Type: model.AmendModification},
		{Pattern: ci(`Section\s+[\d.]+\s+(?:is\s+)?deleted\s+to\s+read`), Type: model.AmendDeletion},
		{Pattern: ci(`Section\s+[\d.]+\s+(?:is\s+)?added\s+to\s+read`), Type: model.AmendAddition},
		{Pattern: ci(`Substitute\s+(?:the\s+following|.*?)\s+for\s+Section`), Type: model.AmendSubstitution},
	}
}

var (
	ordinanceRe = regexp.MustCompile(
		`[Oo]rdinance\s+(?:No\.?\s*)?([A-Z0-9\-]+)\s*,?\s*` +
			`(?:(?:passed|approved|adopted|effective)\s+(?:on\s+)?)?` +
			`(\w+\s+\d{1,2},?\s+\d{4}|\d{1,2}/\d{1,2}/\d{2,4})`)
	sectionBeforeRe = ci(`(?:Section|Sec\.?|§)\s*(\d[\d.]*)`)
	sectionLeadRe   = ci(`Section\s+(\d[\d.]*)`)
)

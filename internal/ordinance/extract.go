package ordinance

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/ahj-registry/internal/model"
)

// Extraction limits.
const (
	MinYear         = 1990
	MaxYear         = 2030
	contextBefore   = 100
	contextAfter    = 150
	sectionLookback = 200
	amendmentTrail  = 200
	sectionLeadSpan = 50
	maxDescription  = 500
	maxAmendments   = 10
)

// Fact is a candidate code adoption found in text.
type Fact struct {
	Code    string
	Year    int
	Section *string
	Context string
	// Offset is the byte offset of the match in the source text.
	Offset int
}

// Amendment is an amendment snippet found in text.
type Amendment struct {
	Type        model.AmendmentType
	Section     *string
	Description string
	Offset      int
}

// Ordinance is the adopting ordinance's number and date.
type Ordinance struct {
	Number string
	Date   string
}

// Result holds everything extracted from one document.
type Result struct {
	Facts      []Fact
	Amendments []Amendment
	// Ordinance is nil when the text names no ordinance.
	Ordinance *Ordinance
}

// Extractor applies a rule table to text.
type Extractor struct {
	rules      []Rule
	amendRules []AmendmentRule
}

// New creates an Extractor over explicit rule tables.
func New(rules []Rule, amendRules []AmendmentRule) *Extractor {
	return &Extractor{rules: rules, amendRules: amendRules}
}

// NewDefault creates an Extractor with the built-in rule tables.
func NewDefault() *Extractor {
	return New(DefaultRules(), DefaultAmendmentRules())
}

// Rules returns the code detection table.
func (e *Extractor) Rules() []Rule {
	return e.rules
}

// Extract runs all three extractions. Empty text yields an empty Result.
func (e *Extractor) Extract(text string) Result {
	res := Result{
		Facts:      e.Facts(text),
		Amendments: e.Amendments(text),
	}
	if o, ok := FindOrdinance(text); ok {
		res.Ordinance = &o
	}
	return res
}

// Facts finds code adoption mentions, keeping the highest edition per code.
func (e *Extractor) Facts(text string) []Fact {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Fact
	for _, rule := range e.rules {
		var (
			best  Fact
			found bool
		)
		for _, re := range rule.Patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				year, ok := firstYear(text, loc)
				if !ok {
					continue
				}
				if found && year <= best.Year {
					continue
				}
				best = Fact{
					Code:    rule.Code,
					Year:    year,
					Section: sectionBefore(text, loc[0]),
					Context: window(text, loc[0]-contextBefore, loc[1]+contextAfter),
					Offset:  loc[0],
				}
				found = true
			}
		}
		if found {
			out = append(out, best)
		}
	}
	return out
}

// Amendments finds amendment phrasing in document order, capped per document.
func (e *Extractor) Amendments(text string) []Amendment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Amendment
	seen := make(map[int]bool)
	for _, rule := range e.amendRules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			if seen[loc[0]] {
				continue
			}
			seen[loc[0]] = true

			snippet := text[loc[0]:clampEnd(text, loc[1]+amendmentTrail)]
			var section *string
			if m := sectionLeadRe.FindStringSubmatch(truncateBytes(snippet, sectionLeadSpan)); m != nil {
				section = model.Ptr(strings.TrimRight(m[1], "."))
			}
			out = append(out, Amendment{
				Type:        rule.Type,
				Section:     section,
				Description: truncateRunes(collapse(snippet), maxDescription),
				Offset:      loc[0],
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	if len(out) > maxAmendments {
		out = out[:maxAmendments]
	}
	return out
}

// FindOrdinance returns the first "Ordinance No. <id>, <date>" occurrence.
func FindOrdinance(text string) (Ordinance, bool) {
	m := ordinanceRe.FindStringSubmatch(text)
	if m == nil {
		return Ordinance{}, false
	}
	return Ordinance{Number: m[1], Date: m[2]}, true
}

// Assign pairs each amendment with the fact whose mention most closely
// precedes it. Amendments that precede every fact go to the earliest fact.
// The result is indexed like facts.
func Assign(facts []Fact, amendments []Amendment) [][]Amendment {
	out := make([][]Amendment, len(facts))
	if len(facts) == 0 {
		return out
	}

	earliest := 0
	for i, f := range facts {
		if f.Offset < facts[earliest].Offset {
			earliest = i
		}
	}

	for _, a := range amendments {
		owner := -1
		for i, f := range facts {
			if f.Offset > a.Offset {
				continue
			}
			if owner == -1 || f.Offset > facts[owner].Offset {
				owner = i
			}
		}
		if owner == -1 {
			owner = earliest
		}
		out[owner] = append(out[owner], a)
	}
	return out
}

func firstYear(text string, loc []int) (int, bool) {
	for g := 1; g*2+1 < len(loc); g++ {
		start, end := loc[g*2], loc[g*2+1]
		if start < 0 || start == end {
			continue
		}
		year, err := strconv.Atoi(text[start:end])
		if err != nil || year < MinYear || year > MaxYear {
			return 0, false
		}
		return year, true
	}
	return 0, false
}

func sectionBefore(text string, matchStart int) *string {
	from := clampStart(text, matchStart-sectionLookback)
	m := sectionBeforeRe.FindStringSubmatch(text[from:matchStart])
	if m == nil {
		return nil
	}
	return model.Ptr(strings.TrimRight(m[1], "."))
}

func window(text string, start, end int) string {
	return collapse(text[clampStart(text, start):clampEnd(text, end)])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clampStart bounds i to the text and moves it forward to a rune boundary.
func clampStart(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// clampEnd bounds i to the text and moves it back to a rune boundary.
func clampEnd(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func truncateBytes(s string, n int) string {
	return s[:clampEnd(s, n)]
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

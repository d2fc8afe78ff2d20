package ordinance

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
)

func factCodes(facts []Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Code
	}
	return out
}

func TestFacts_SingleCode(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	facts := e.Facts("The city hereby adopts the International Building Code, 2021 Edition, as amended.")
	require.Len(t, facts, 1)
	assert.Equal(t, "IBC", facts[0].Code)
	assert.Equal(t, 2021, facts[0].Year)
	assert.Contains(t, facts[0].Context, "International Building Code, 2021 Edition")
}

func TestFacts_Variants(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	tests := []struct {
		text string
		code string
		year int
	}{
		{"Adopting NFPA 70, 2020 Edition for all occupancies.", "NEC", 2020},
		{"the National Electrical Code 2017 is adopted", "NEC", 2017},
		{"the 2018 International Building Code is adopted", "IBC", 2018},
		{"IRC, 2015 with local amendments", "IRC", 2015},
		{"Uniform Plumbing Code, 2021 applies", "UPC", 2021},
		{"NFPA 1 Fire Code, 2018 edition", "NFPA1", 2018},
		{"International Fuel Gas Code 2012", "IFGC", 2012},
		{"international energy conservation code, 2021", "IECC", 2021},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			facts := e.Facts(tt.text)
			require.NotEmpty(t, facts, tt.text)
			var found bool
			for _, f := range facts {
				if f.Code == tt.code {
					found = true
					assert.Equal(t, tt.year, f.Year)
				}
			}
			assert.True(t, found, "expected %s in %q", tt.code, tt.text)
		})
	}
}

func TestFacts_FourDistinctCodes(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	text := `Chapter 5 Buildings.
The following codes are adopted: International Building Code, 2021 Edition;
International Residential Code, 2021; International Fire Code, 2021;
and the National Electrical Code, 2020.`

	facts := e.Facts(text)
	assert.ElementsMatch(t, []string{"IBC", "IRC", "IFC", "NEC"}, factCodes(facts))
}

func TestFacts_PlainYearsYieldNothing(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	assert.Empty(t, e.Facts("In 2021 the council met 14 times and approved 2019 budgets."))
	assert.Empty(t, e.Facts(""))
	assert.Empty(t, e.Facts("   \n\t"))
}

func TestFacts_KeepsHighestEdition(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	text := "Previously the IBC 2018 applied. The city now adopts the International Building Code, 2021 Edition."
	facts := e.Facts(text)
	require.Len(t, facts, 1)
	assert.Equal(t, "IBC", facts[0].Code)
	assert.Equal(t, 2021, facts[0].Year)
}

func TestFacts_RejectsOutOfRangeYears(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	assert.Empty(t, e.Facts("IBC 1985 and IBC 2031 are not real adoptions"))

	facts := e.Facts("IBC 1985, later IBC 2006")
	require.Len(t, facts, 1)
	assert.Equal(t, 2006, facts[0].Year)
}

func TestFacts_SectionReference(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	facts := e.Facts("Sec. 14-21. Building code adopted. The International Building Code, 2018 Edition is adopted.")
	require.Len(t, facts, 1)
	require.NotNil(t, facts[0].Section)
	assert.Equal(t, "14", *facts[0].Section)

	facts = e.Facts("§ 101.4 The IBC 2015 is adopted")
	require.Len(t, facts, 1)
	require.NotNil(t, facts[0].Section)
	assert.Equal(t, "101.4", *facts[0].Section)

	facts = e.Facts("The IBC 2015 is adopted")
	require.Len(t, facts, 1)
	assert.Nil(t, facts[0].Section)
}

func TestFacts_ContextIsBoundedAndCollapsed(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	text := strings.Repeat("x ", 300) + "IBC 2021\n\n\tadopted " + strings.Repeat("y ", 300)
	facts := e.Facts(text)
	require.Len(t, facts, 1)
	assert.NotContains(t, facts[0].Context, "\n")
	assert.LessOrEqual(t, len(facts[0].Context), contextBefore+contextAfter+len("IBC 2021"))
}

func TestFacts_CustomRuleTable(t *testing.T) {
	t.Parallel()

	e := New([]Rule{{Code: "ISPSC", Patterns: []*regexp.Regexp{ci(`Swimming\s+Pool\s+and\s+Spa\s+Code[,\s]+(\d{4})`)}}}, nil)
	facts := e.Facts("the International Swimming Pool and Spa Code, 2018 and IBC 2018")
	require.Len(t, facts, 1)
	assert.Equal(t, "ISPSC", facts[0].Code)
	assert.Empty(t, e.Amendments("Section 3 is amended to read"))
}

func TestAmendments(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	text := `The IBC 2021 is adopted with the following changes.
Section 101.1 is amended to read: These regulations shall be known as the Building Code of Springfield.
Section 1612.3 is deleted to read as reserved.
Section 105.2 is added to read: Work exempt from permit includes sheds under 200 square feet.
Substitute the following for Section 903.2.8.`

	amends := e.Amendments(text)
	require.Len(t, amends, 4)

	assert.Equal(t, model.AmendModification, amends[0].Type)
	require.NotNil(t, amends[0].Section)
	assert.Equal(t, "101.1", *amends[0].Section)

	assert.Equal(t, model.AmendDeletion, amends[1].Type)
	assert.Equal(t, "1612.3", *amends[1].Section)

	assert.Equal(t, model.AmendAddition, amends[2].Type)
	assert.Equal(t, model.AmendSubstitution, amends[3].Type)

	for i := 1; i < len(amends); i++ {
		assert.Less(t, amends[i-1].Offset, amends[i].Offset)
	}
}

func TestAmendments_CapsAndTruncates(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	var sb strings.Builder
	for i := 0; i < 15; i++ {
		sb.WriteString("Section 10" + string(rune('0'+i%10)) + " is amended to read " + strings.Repeat("z", 600) + ". ")
	}
	amends := e.Amendments(sb.String())
	assert.Len(t, amends, maxAmendments)
	for _, a := range amends {
		assert.LessOrEqual(t, len([]rune(a.Description)), maxDescription)
	}
}

func TestFindOrdinance(t *testing.T) {
	t.Parallel()

	o, ok := FindOrdinance("Ordinance No. 2023-45, passed January 15, 2023, adopting the IBC.")
	require.True(t, ok)
	assert.Equal(t, "2023-45", o.Number)
	assert.Equal(t, "January 15, 2023", o.Date)

	o, ok = FindOrdinance("per ordinance 17-3 adopted 3/14/2019")
	require.True(t, ok)
	assert.Equal(t, "17-3", o.Number)
	assert.Equal(t, "3/14/2019", o.Date)

	_, ok = FindOrdinance("No ordinance reference here")
	assert.False(t, ok)
}

func TestExtract_EmptyText(t *testing.T) {
	t.Parallel()

	res := NewDefault().Extract("")
	assert.Empty(t, res.Facts)
	assert.Empty(t, res.Amendments)
	assert.Nil(t, res.Ordinance)
}

func TestAssign(t *testing.T) {
	t.Parallel()

	facts := []Fact{{Code: "IBC", Offset: 10}, {Code: "IRC", Offset: 200}}
	amends := []Amendment{{Offset: 5}, {Offset: 50}, {Offset: 250}, {Offset: 300}}

	got := Assign(facts, amends)
	require.Len(t, got, 2)
	assert.Len(t, got[0], 2)
	assert.Len(t, got[1], 2)
	assert.Equal(t, 5, got[0][0].Offset)
	assert.Equal(t, 300, got[1][1].Offset)

	assert.Empty(t, Assign(nil, amends))
}

func TestExtract_NeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	e := NewDefault()

	properties.Property("arbitrary text extracts without panicking", prop.ForAll(
		func(s string) bool {
			res := e.Extract(s)
			for _, f := range res.Facts {
				if f.Year < MinYear || f.Year > MaxYear {
					return false
				}
			}
			return len(res.Amendments) <= maxAmendments
		},
		gen.AnyString(),
	))

	properties.Property("a named code with a valid year is always found", prop.ForAll(
		func(year int, filler string) bool {
			text := filler + " IECC " + strconv.Itoa(year) + " " + filler
			for _, f := range e.Facts(text) {
				if f.Code == "IECC" && f.Year >= year {
					return true
				}
			}
			return false
		},
		gen.IntRange(MinYear, MaxYear),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

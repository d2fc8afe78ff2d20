package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
)

func row(cells ...string) []string { return cells }

func TestClassify(t *testing.T) {
	t.Parallel()
	e := NewICCExtractor()

	_, kind := e.Classify(nil)
	assert.Equal(t, RowEmpty, kind)

	_, kind = e.Classify(row("", "21"))
	assert.Equal(t, RowEmpty, kind)

	_, kind = e.Classify(row("State", "IBC", "IRC"))
	assert.Equal(t, RowHeader, kind)

	_, kind = e.Classify(row("Footnotes", "21"))
	assert.Equal(t, RowUnknownName, kind)

	rec, kind := e.Classify(row("Alabama", "21", "(21)", "X"))
	require.Equal(t, RowRecord, kind)
	assert.Equal(t, "Alabama", rec.Name)
	require.Len(t, rec.Cells, len(ICCColumns))

	ibc, ok := rec.Cell("IBC")
	require.True(t, ok)
	assert.Equal(t, 2021, *ibc.Year)
	assert.Equal(t, model.StatusAdopted, ibc.Status)

	irc, _ := rec.Cell("IRC")
	assert.Equal(t, model.StatusAdoptedStretch, irc.Status)

	ifc, _ := rec.Cell("IFC")
	assert.Equal(t, model.StatusLocalOnly, ifc.Status)

	// short rows are padded with blanks
	zoning, _ := rec.Cell("IZC")
	assert.Equal(t, model.StatusNotAdopted, zoning.Status)
	assert.Nil(t, zoning.Year)

	_, ok = rec.Cell("NEC")
	assert.False(t, ok)
}

func TestClassify_TruncatesLongRows(t *testing.T) {
	t.Parallel()
	e := NewExtractor([]string{"IBC", "IRC"}, []string{"Ohio"})

	rec, kind := e.Classify(row("Ohio", "18", "18", "99", "extra"))
	require.Equal(t, RowRecord, kind)
	assert.Len(t, rec.Cells, 2)
}

func TestFromTables_LastOccurrenceWins(t *testing.T) {
	t.Parallel()
	e := NewExtractor([]string{"IBC", "IRC"}, []string{"Ohio", "Texas"})

	doc := &Document{Pages: []Page{
		{Tables: []Table{{
			row("State", "IBC", "IRC"),
			row("Ohio", "15", "15"),
			row("Texas", "X", "X"),
		}}},
		{Tables: []Table{{
			row("Ohio", "18", ""),
		}}},
	}}

	recs := e.FromTables(doc)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ohio", recs[0].Name)
	assert.Equal(t, "Texas", recs[1].Name)

	ibc, _ := recs[0].Cell("IBC")
	assert.Equal(t, 2018, *ibc.Year)
	irc, _ := recs[0].Cell("IRC")
	assert.Equal(t, model.StatusNotAdopted, irc.Status)
}

func TestUnmatched(t *testing.T) {
	t.Parallel()
	e := NewExtractor([]string{"IBC", "IRC"}, []string{"Ohio"})

	doc := &Document{Pages: []Page{
		{Tables: []Table{{
			row("State", "IBC", "IRC"),
			row("Ohio", "18", "18"),
			row("Atlantis", "21", ""),
			row("* Adopted with", "amendments", ""),
			row("Lemuria", "X", ""),
		}}},
		{Tables: []Table{{
			row("Atlantis", "", "(18)"),
		}}},
	}}

	assert.Equal(t, []string{"Atlantis"}, e.Unmatched(doc))
	assert.Len(t, e.FromTables(doc), 1)
}

func TestFromText(t *testing.T) {
	t.Parallel()
	e := NewExtractor([]string{"IBC", "IRC", "IFC"}, model.StateNames())

	doc := &Document{Pages: []Page{{Text: `ICC Code Adoption Chart
State IBC IRC IFC
Virginia 21 21 21
West Virginia 18 18 (21)
Kansas X X
Kansasville 99 99 99
`}}}

	recs := e.FromText(doc)
	require.Len(t, recs, 3)
	assert.Equal(t, "Virginia", recs[0].Name)
	assert.Equal(t, "West Virginia", recs[1].Name)
	assert.Equal(t, "Kansas", recs[2].Name)

	ifc, _ := recs[1].Cell("IFC")
	assert.Equal(t, model.StatusAdoptedStretch, ifc.Status)

	kifc, _ := recs[2].Cell("IFC")
	assert.Equal(t, model.StatusNotAdopted, kifc.Status)
}

func TestExtract_FallsBackToText(t *testing.T) {
	t.Parallel()
	e := NewExtractor([]string{"IBC"}, []string{"Ohio"})

	withTables := &Document{Pages: []Page{{
		Tables: []Table{{row("Ohio", "21")}},
		Text:   "Ohio 15",
	}}}
	recs := e.Extract(withTables)
	require.Len(t, recs, 1)
	ibc, _ := recs[0].Cell("IBC")
	assert.Equal(t, 2021, *ibc.Year)

	textOnly := &Document{Pages: []Page{{Text: "Ohio 15"}}}
	recs = e.Extract(textOnly)
	require.Len(t, recs, 1)
	ibc, _ = recs[0].Cell("IBC")
	assert.Equal(t, 2015, *ibc.Year)

	assert.Empty(t, e.Extract(&Document{}))
}

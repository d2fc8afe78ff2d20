package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
	"github.com/sells-group/ahj-registry/internal/reference"
)

const necPage = `<html><body>
<table>
  <tr><th>State</th><th>NEC Edition in Effect</th></tr>
  <tr><td>Colorado</td><td>2023 NEC (8/1/2023)</td></tr>
  <tr><td>Arizona</td><td>No statewide adoption</td></tr>
  <tr><td>Mississippi</td><td>Not adopted</td></tr>
  <tr><td>Wyoming</td><td>To be announced</td></tr>
</table>
<table><tr><th>Contact</th></tr><tr><td>2020 office hours</td></tr></table>
</body></html>`

func necDataset() *reference.Dataset[reference.ElectricalRecord] {
	return &reference.Dataset[reference.ElectricalRecord]{
		Version: "test",
		Source:  model.SourceNFPAMap,
		Records: []reference.ElectricalRecord{
			{State: "Colorado", Abbr: "CO", Edition: model.Ptr(2020), Effective: model.Ptr("2020-08-01"), Status: model.StatusAdopted, Notes: "State electrical board"},
			{State: "Arizona", Abbr: "AZ", Status: model.StatusLocalOnly},
			{State: "Wyoming", Abbr: "WY", Edition: model.Ptr(2017), Status: model.StatusAdopted},
			{State: "Chicago", Abbr: "IL", JurisdictionType: model.TypeCity, Edition: model.Ptr(2017), Status: model.StatusAdopted},
			{State: "Nowhere", Status: model.StatusAdopted},
		},
	}
}

func TestParseElectricalTables(t *testing.T) {
	t.Parallel()

	recs, err := ParseElectricalTables([]byte(necPage))
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, "CO", recs[0].Abbr)
	require.NotNil(t, recs[0].Edition)
	assert.Equal(t, 2023, *recs[0].Edition)
	assert.Equal(t, "2023-08-01", *recs[0].Effective)
	assert.Equal(t, model.StatusAdopted, recs[0].Status)

	assert.Equal(t, model.StatusLocalOnly, recs[1].Status)
	assert.Nil(t, recs[1].Edition)
	assert.Equal(t, model.StatusNotAdopted, recs[2].Status)
	assert.Equal(t, model.StatusNotAdopted, recs[3].Status)
}

const necNotesPage = `<html><body>
<table>
  <tr><th>State</th><th>Edition</th><th>Notes</th></tr>
  <tr><td>Illinois</td><td>2023 (7/1/2024)</td><td>Commercial only, outside local jurisdictions</td></tr>
  <tr><td>Wyoming</td><td></td><td>2026 update projected</td></tr>
</table>
</body></html>`

func TestParseElectricalTables_NotesColumn(t *testing.T) {
	t.Parallel()

	recs, err := ParseElectricalTables([]byte(necNotesPage))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	il := recs[0]
	assert.Equal(t, "IL", il.Abbr)
	require.NotNil(t, il.Edition)
	assert.Equal(t, 2023, *il.Edition)
	assert.Equal(t, "2024-07-01", *il.Effective)
	assert.Equal(t, model.StatusAdopted, il.Status)
	assert.Equal(t, "Commercial only, outside local jurisdictions", il.Notes)

	wy := recs[1]
	assert.Nil(t, wy.Edition)
	assert.Equal(t, model.StatusNotAdopted, wy.Status)
	assert.Equal(t, "2026 update projected", wy.Notes)
}

func TestNEC_LiveNotesNeverOverrideReference(t *testing.T) {
	st := newTestStore(t)
	srv := serveHTML(t, map[string]string{"/primary": necNotesPage})

	ds := necDataset()
	ds.Records = ds.Records[:3]
	sum := runSource(t, st, &NEC{
		Fetcher:    newTestFetcher(),
		Dataset:    ds,
		PrimaryURL: srv.URL + "/primary",
		Live:       true,
	})
	assert.Equal(t, model.RunSuccess, sum.Status)

	wy := adoptionsFor(t, st)["Wyoming/NEC"]
	require.NotNil(t, wy.EditionYear)
	assert.Equal(t, 2017, *wy.EditionYear)
	assert.Equal(t, model.StatusAdopted, wy.Status)
}

func TestNEC_ReferenceOnly(t *testing.T) {
	st := newTestStore(t)

	sum := runSource(t, st, &NEC{Dataset: necDataset()})
	assert.Equal(t, model.RunPartial, sum.Status)
	assert.Equal(t, 4, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Contains(t, sum.Errors[0], "Nowhere")

	ads := adoptionsFor(t, st)
	co := ads["Colorado/NEC"]
	assert.Equal(t, 2020, *co.EditionYear)
	assert.Equal(t, "2020-08-01", *co.EffectiveDate)
	assert.Equal(t, "State electrical board", *co.SourceText)
	assert.Equal(t, model.StatusLocalOnly, ads["Arizona/NEC"].Status)

	js, err := st.SearchJurisdictions(t.Context(), "chicago", 5)
	require.NoError(t, err)
	require.Len(t, js, 1)
	assert.Equal(t, model.TypeCity, js[0].Type)
	assert.Equal(t, "Illinois", js[0].StateName)
}

func TestNEC_LiveMergePrefersBetter(t *testing.T) {
	st := newTestStore(t)
	srv := serveHTML(t, map[string]string{"/secondary": necPage})

	ds := necDataset()
	ds.Records = ds.Records[:3]
	sum := runSource(t, st, &NEC{
		Fetcher:      newTestFetcher(),
		Dataset:      ds,
		PrimaryURL:   srv.URL + "/primary",
		SecondaryURL: srv.URL + "/secondary",
		Live:         true,
	})

	// the primary 404 is recorded, the secondary carries the run
	assert.Equal(t, model.RunPartial, sum.Status)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "/primary")

	ads := adoptionsFor(t, st)
	co := ads["Colorado/NEC"]
	assert.Equal(t, 2023, *co.EditionYear)
	assert.Equal(t, "2023-08-01", *co.EffectiveDate)
	assert.Equal(t, "State electrical board", *co.SourceText)
	// live rows without an edition never replace the reference
	assert.Equal(t, 2017, *ads["Wyoming/NEC"].EditionYear)
	assert.Equal(t, model.StatusLocalOnly, ads["Arizona/NEC"].Status)
}

func TestNEC_LiveUnavailable(t *testing.T) {
	st := newTestStore(t)
	srv := serveHTML(t, nil)

	ds := necDataset()
	ds.Records = ds.Records[:1]
	sum := runSource(t, st, &NEC{
		Fetcher:      newTestFetcher(),
		Dataset:      ds,
		PrimaryURL:   srv.URL + "/primary",
		SecondaryURL: srv.URL + "/secondary",
		Live:         true,
	})
	assert.Equal(t, model.RunPartial, sum.Status)
	assert.Len(t, sum.Errors, 2)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 2020, *adoptionsFor(t, st)["Colorado/NEC"].EditionYear)
}

func TestNEC_EmbeddedDataset(t *testing.T) {
	st := newTestStore(t)

	sum := runSource(t, st, &NEC{})
	assert.Equal(t, model.RunSuccess, sum.Status)
	assert.Greater(t, sum.Inserted, 50)

	ads := adoptionsFor(t, st)
	assert.Contains(t, ads, "New York City/NEC")
	assert.Contains(t, ads, "Chicago/NEC")
}

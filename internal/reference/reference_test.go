package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ahj-registry/internal/model"
)

func TestLoadElectrical(t *testing.T) {
	t.Parallel()

	ds, err := LoadElectrical()
	require.NoError(t, err)
	assert.NotEmpty(t, ds.Version)
	assert.Equal(t, model.SourceNFPAMap, ds.Source)
	require.Len(t, ds.Records, 53)

	byState := map[string]ElectricalRecord{}
	for _, r := range ds.Records {
		byState[r.State] = r
	}

	al := byState["Alabama"]
	require.NotNil(t, al.Edition)
	assert.Equal(t, 2020, *al.Edition)
	assert.Equal(t, "2022-07-01", *al.Effective)
	assert.Equal(t, model.TypeState, al.Type())

	az := byState["Arizona"]
	assert.Nil(t, az.Edition)
	assert.Equal(t, model.StatusLocalOnly, az.Status)

	nyc := byState["New York City"]
	assert.Equal(t, "NY", nyc.Abbr)
	assert.Equal(t, model.TypeCity, nyc.Type())
}

func TestLoadEnergy(t *testing.T) {
	t.Parallel()

	ds, err := LoadEnergy()
	require.NoError(t, err)
	require.Len(t, ds.Records, 53)

	byAbbr := map[string]EnergyRecord{}
	for _, r := range ds.Records {
		byAbbr[r.Abbr] = r
	}

	code, year, label, ok := byAbbr["MD"].CommercialEdition()
	require.True(t, ok)
	assert.Equal(t, "ASHRAE-90.1", code)
	assert.Equal(t, 2019, year)
	assert.Equal(t, "90.1-2019", label)

	code, year, _, ok = byAbbr["FL"].CommercialEdition()
	require.True(t, ok)
	assert.Equal(t, "IECC-C", code)
	assert.Equal(t, 2021, year)

	_, _, _, ok = byAbbr["AZ"].CommercialEdition()
	assert.False(t, ok)
	assert.Nil(t, byAbbr["AZ"].Residential)
}

func TestParse_RequiresVersion(t *testing.T) {
	t.Parallel()

	_, err := Parse[ElectricalRecord]([]byte("records: []"))
	require.Error(t, err)

	_, err = Parse[ElectricalRecord]([]byte("version: [oops"))
	require.Error(t, err)
}

func TestMerge_PreferIfBetter(t *testing.T) {
	t.Parallel()

	baseline := []ElectricalRecord{
		{State: "Ohio", Abbr: "OH", Edition: model.Ptr(2017), Status: model.StatusAdopted, Effective: model.Ptr("2019-03-01")},
		{State: "Texas", Abbr: "TX", Edition: model.Ptr(2020), Status: model.StatusAdopted},
		{State: "Maine", Abbr: "ME", Edition: model.Ptr(2020), Status: model.StatusAdopted, Notes: "baseline"},
	}
	live := []ElectricalRecord{
		// no parseable edition: must not override
		{State: "Ohio", Status: model.StatusLocalOnly},
		{State: "Texas", Edition: model.Ptr(2023), Status: model.StatusAdopted, Effective: model.Ptr("2023-09-01")},
		{State: "Maine", Edition: model.Ptr(2023), Status: model.StatusAdopted},
		// unknown to the baseline: dropped
		{State: "Atlantis", Edition: model.Ptr(2023), Status: model.StatusAdopted},
	}

	got := Merge(baseline, live, ElectricalPolicy())
	require.Len(t, got, 3)

	assert.Equal(t, 2017, *got[0].Edition)
	assert.Equal(t, model.StatusAdopted, got[0].Status)
	assert.Equal(t, "2019-03-01", *got[0].Effective)

	assert.Equal(t, 2023, *got[1].Edition)
	assert.Equal(t, "TX", got[1].Abbr)
	assert.Equal(t, "2023-09-01", *got[1].Effective)

	assert.Equal(t, 2023, *got[2].Edition)
	assert.Equal(t, "baseline", got[2].Notes)

	// baseline is untouched
	assert.Equal(t, 2020, *baseline[1].Edition)
}

func TestMerge_Energy(t *testing.T) {
	t.Parallel()

	baseline := []EnergyRecord{
		{State: "Ohio", Abbr: "OH", Residential: model.Ptr(2018), Commercial: model.Ptr("90.1-2016")},
		{State: "Utah", Abbr: "UT", Residential: model.Ptr(2015), Commercial: model.Ptr("2015")},
	}
	live := []EnergyRecord{
		{Abbr: "OH", Commercial: model.Ptr("90.1-2019")},
		{Abbr: "UT", Commercial: model.Ptr("garbage")},
	}

	got := Merge(baseline, live, EnergyPolicy())
	assert.Equal(t, 2018, *got[0].Residential)
	assert.Equal(t, "90.1-2019", *got[0].Commercial)
	assert.Equal(t, "2015", *got[1].Commercial)
}

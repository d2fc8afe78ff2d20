package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCode(t *testing.T) {
	t.Parallel()

	m := LookupCode("NEC")
	assert.Equal(t, "National Electrical Code (NFPA 70)", m.FullName)
	assert.Equal(t, "NFPA", m.Org)

	m = LookupCode("ASHRAE-90.1")
	assert.Equal(t, "ASHRAE", m.Org)

	m = LookupCode("XYZ")
	assert.Equal(t, "XYZ", m.FullName)
	assert.Equal(t, "unknown", m.Org)
}

func TestStateLookups(t *testing.T) {
	t.Parallel()

	s, ok := StateByName("  west virginia ")
	require.True(t, ok)
	assert.Equal(t, "WV", s.Abbr)

	s, ok = StateByAbbr("pr")
	require.True(t, ok)
	assert.Equal(t, "Puerto Rico", s.Name)
	assert.Equal(t, "Territory", s.Region)

	_, ok = StateByName("Atlantis")
	assert.False(t, ok)
}

func TestStateNamesLongestFirst(t *testing.T) {
	t.Parallel()

	names := StateNames()
	require.Len(t, names, 56)

	idx := func(n string) int {
		for i, v := range names {
			if v == n {
				return i
			}
		}
		return -1
	}
	assert.Less(t, idx("West Virginia"), idx("Virginia"))
	assert.Less(t, idx("Arkansas"), idx("Kansas"))

	names[0] = "mutated"
	assert.NotEqual(t, "mutated", StateNames()[0])
}

func TestEnumValidity(t *testing.T) {
	t.Parallel()

	assert.True(t, TypeFireDistrict.Valid())
	assert.False(t, JurisdictionType("parish").Valid())
	assert.True(t, TypeBorough.IsMunicipal())
	assert.False(t, TypeCounty.IsMunicipal())

	assert.True(t, StatusAdoptedStretch.Valid())
	assert.False(t, AdoptionStatus("rumored").Valid())
	assert.True(t, StatusSuperseded.Terminal())
	assert.True(t, StatusWithdrawn.Terminal())
	assert.False(t, StatusPending.Terminal())

	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunPartial.Terminal())
}

func TestStringOrNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, StringOrNil(""))
	require.NotNil(t, StringOrNil("x"))
	assert.Equal(t, "x", *StringOrNil("x"))
	assert.Equal(t, 2021, *Ptr(2021))
}

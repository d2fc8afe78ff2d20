package chart

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/ahj-registry/internal/model"
)

func TestParseCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		year   int // 0 means no edition
		status model.AdoptionStatus
	}{
		{"21", 2021, model.StatusAdopted},
		{"(21)", 2021, model.StatusAdoptedStretch},
		{"X", 0, model.StatusLocalOnly},
		{"x", 0, model.StatusLocalOnly},
		{"(X)", 0, model.StatusLocalOnly},
		{"", 0, model.StatusNotAdopted},
		{"   ", 0, model.StatusNotAdopted},
		{"09", 2009, model.StatusAdopted},
		{"00", 2000, model.StatusAdopted},
		{"18", 2018, model.StatusAdopted},
		{"35", 2035, model.StatusAdopted},
		{"90.1-2019", 2019, model.StatusAdopted},
		{"(90.1-2016)", 2016, model.StatusAdoptedStretch},
		{"90.1–2013", 2013, model.StatusAdopted},
		{"2021", 2021, model.StatusAdopted},
		{"(2018)", 2018, model.StatusAdoptedStretch},
		{" 15 ", 2015, model.StatusAdopted},
		{"36", 0, model.StatusLocalOnly},
		{"99", 0, model.StatusLocalOnly},
		{"*", 0, model.StatusLocalOnly},
		{"See note", 0, model.StatusLocalOnly},
		{"210", 0, model.StatusLocalOnly},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			year, status := ParseCell(tt.raw)
			assert.Equal(t, tt.status, status)
			if tt.year == 0 {
				assert.Nil(t, year)
				return
			}
			if assert.NotNil(t, year) {
				assert.Equal(t, tt.year, *year)
			}
		})
	}
}

func TestParseCell_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("every input yields a defined status", prop.ForAll(
		func(s string) bool {
			year, status := ParseCell(s)
			if !status.Valid() {
				return false
			}
			// editions are only reported with an adopted status
			if year != nil {
				return status == model.StatusAdopted || status == model.StatusAdoptedStretch
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("two digit years inside the window map into 2000s", prop.ForAll(
		func(yy int) bool {
			year, status := ParseCell(fmt.Sprintf("%02d", yy))
			return year != nil && *year == 2000+yy && status == model.StatusAdopted
		},
		gen.IntRange(0, 35),
	))

	properties.Property("parentheses only change adopted to stretch", prop.ForAll(
		func(yy int) bool {
			plain, plainStatus := ParseCell(fmt.Sprintf("%02d", yy))
			wrapped, wrappedStatus := ParseCell(fmt.Sprintf("(%02d)", yy))
			return *plain == *wrapped &&
				plainStatus == model.StatusAdopted &&
				wrappedStatus == model.StatusAdoptedStretch
		},
		gen.IntRange(0, 35),
	))

	properties.TestingRun(t)
}

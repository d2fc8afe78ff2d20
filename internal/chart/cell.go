// Package chart decodes tabular adoption charts into per-jurisdiction records.
package chart

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/ahj-registry/internal/model"
)

// Editions written as two digits are accepted only inside this window.
const (
	minShortYear = 2000
	maxShortYear = 2035
)

var (
	ashraeRe    = regexp.MustCompile(`90\.1[-–](\d{4})`)
	twoDigitRe  = regexp.MustCompile(`^\d{2}$`)
	fourDigitRe = regexp.MustCompile(`^\d{4}$`)
)

// ParseCell decodes one chart cell into an edition year and status. It is
// total: every input yields a result.
//
//	""          -> (nil, not_adopted)
//	"X"         -> (nil, local_only)
//	"21"        -> (2021, adopted)
//	"(21)"      -> (2021, adopted_stretch)
//	"90.1-2019" -> (2019, adopted)
//	"??"        -> (nil, local_only)
func ParseCell(raw string) (*int, model.AdoptionStatus) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.StatusNotAdopted
	}

	stretch := strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")")
	inner := strings.TrimSpace(strings.Trim(raw, "()"))

	adopted := model.StatusAdopted
	if stretch {
		adopted = model.StatusAdoptedStretch
	}

	if strings.EqualFold(inner, "X") {
		return nil, model.StatusLocalOnly
	}

	if m := ashraeRe.FindStringSubmatch(inner); m != nil {
		yr, _ := strconv.Atoi(m[1])
		return &yr, adopted
	}

	if twoDigitRe.MatchString(inner) {
		yy, _ := strconv.Atoi(inner)
		yr := 2000 + yy
		if yr >= minShortYear && yr <= maxShortYear {
			return &yr, adopted
		}
	}

	if fourDigitRe.MatchString(inner) {
		yr, _ := strconv.Atoi(inner)
		return &yr, adopted
	}

	return nil, model.StatusLocalOnly
}

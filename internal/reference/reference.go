// Package reference holds the versioned fallback adoption datasets used when
// live sources are unavailable, and the merge policy that reconciles them
// with live records.
package reference

import (
	"embed"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ahj-registry/internal/model"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ElectricalRecord is one state's (or city's) electrical code adoption.
type ElectricalRecord struct {
	State            string                 `yaml:"state"`
	Abbr             string                 `yaml:"abbr"`
	JurisdictionType model.JurisdictionType `yaml:"jurisdiction_type"`
	Edition          *int                   `yaml:"edition"`
	Effective        *string                `yaml:"effective"`
	Status           model.AdoptionStatus   `yaml:"status"`
	Notes            string                 `yaml:"notes"`
}

// Type returns the jurisdiction type, defaulting to state.
func (r ElectricalRecord) Type() model.JurisdictionType {
	if r.JurisdictionType == "" {
		return model.TypeState
	}
	return r.JurisdictionType
}

// EnergyRecord is one state's energy code adoption. Commercial holds either
// an IECC year ("2021") or an ASHRAE 90.1 label ("90.1-2019").
type EnergyRecord struct {
	State                string  `yaml:"state"`
	Abbr                 string  `yaml:"abbr"`
	Residential          *int    `yaml:"residential"`
	ResidentialEffective *string `yaml:"residential_effective"`
	Commercial           *string `yaml:"commercial"`
	CommercialEffective  *string `yaml:"commercial_effective"`
	Notes                string  `yaml:"notes"`
}

// CommercialEdition decodes the commercial column into a code key, year and
// label. ok is false when no commercial code is recorded or it is unparseable.
func (r EnergyRecord) CommercialEdition() (code string, year int, label string, ok bool) {
	if r.Commercial == nil {
		return "", 0, "", false
	}
	v := strings.TrimSpace(*r.Commercial)
	if rest, found := strings.CutPrefix(v, "90.1-"); found {
		y, err := strconv.Atoi(rest)
		if err != nil {
			return "", 0, "", false
		}
		return "ASHRAE-90.1", y, v, true
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return "", 0, "", false
	}
	return "IECC-C", y, v, true
}

// Dataset is a versioned reference table.
type Dataset[T any] struct {
	Version string           `yaml:"version"`
	Source  model.SourceType `yaml:"source"`
	Records []T              `yaml:"records"`
}

// LoadElectrical loads the embedded electrical code dataset.
func LoadElectrical() (*Dataset[ElectricalRecord], error) {
	ds, err := load[ElectricalRecord]("data/nec.yaml")
	if err != nil {
		return nil, err
	}
	for i, r := range ds.Records {
		if !r.Status.Valid() {
			return nil, eris.Errorf("reference: %s has invalid status %q", r.State, r.Status)
		}
		if !r.Type().Valid() {
			return nil, eris.Errorf("reference: %s has invalid jurisdiction type %q", r.State, r.JurisdictionType)
		}
		ds.Records[i].Abbr = strings.ToUpper(r.Abbr)
	}
	return ds, nil
}

// LoadEnergy loads the embedded energy code dataset.
func LoadEnergy() (*Dataset[EnergyRecord], error) {
	return load[EnergyRecord]("data/iecc.yaml")
}

func load[T any](name string) (*Dataset[T], error) {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: read %s", name)
	}
	return Parse[T](raw)
}

// Parse decodes a dataset document.
func Parse[T any](raw []byte) (*Dataset[T], error) {
	var ds Dataset[T]
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, eris.Wrap(err, "reference: decode dataset")
	}
	if ds.Version == "" {
		return nil, eris.New("reference: dataset has no version")
	}
	return &ds, nil
}

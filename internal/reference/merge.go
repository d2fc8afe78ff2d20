package reference

// Policy tells Merge how to reconcile a baseline record with a live one.
type Policy[T any] struct {
	// Key identifies the logical fact a record describes.
	Key func(T) string
	// Usable reports whether a live record carries a parseable edition.
	Usable func(T) bool
	// Overlay combines a baseline with a usable live record.
	Overlay func(base, live T) T
}

// Merge overlays live records onto the baseline. A live record replaces its
// baseline counterpart only when the policy deems it usable; otherwise the
// baseline is kept unchanged. Live records with no baseline counterpart are
// dropped, and baseline order is preserved.
func Merge[T any](baseline, live []T, p Policy[T]) []T {
	byKey := make(map[string]T, len(live))
	for _, r := range live {
		if p.Usable(r) {
			byKey[p.Key(r)] = r
		}
	}

	out := make([]T, len(baseline))
	for i, base := range baseline {
		if l, ok := byKey[p.Key(base)]; ok {
			out[i] = p.Overlay(base, l)
			continue
		}
		out[i] = base
	}
	return out
}

// ElectricalPolicy merges live electrical records keyed by state name.
func ElectricalPolicy() Policy[ElectricalRecord] {
	return Policy[ElectricalRecord]{
		Key:    func(r ElectricalRecord) string { return r.State },
		Usable: func(r ElectricalRecord) bool { return r.Edition != nil },
		Overlay: func(base, live ElectricalRecord) ElectricalRecord {
			out := base
			out.Edition = live.Edition
			out.Status = live.Status
			if live.Effective != nil {
				out.Effective = live.Effective
			}
			if live.Notes != "" {
				out.Notes = live.Notes
			}
			return out
		},
	}
}

// EnergyPolicy merges live energy records keyed by state abbreviation. Each
// side (residential, commercial) is taken from the live record only when it
// is present there.
func EnergyPolicy() Policy[EnergyRecord] {
	return Policy[EnergyRecord]{
		Key: func(r EnergyRecord) string { return r.Abbr },
		Usable: func(r EnergyRecord) bool {
			_, _, _, ok := r.CommercialEdition()
			return r.Residential != nil || ok
		},
		Overlay: func(base, live EnergyRecord) EnergyRecord {
			out := base
			if live.Residential != nil {
				out.Residential = live.Residential
				out.ResidentialEffective = live.ResidentialEffective
			}
			if _, _, _, ok := live.CommercialEdition(); ok {
				out.Commercial = live.Commercial
				out.CommercialEffective = live.CommercialEffective
			}
			return out
		},
	}
}

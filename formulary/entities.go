// Package formulary provides the structured per-drug dosing configuration:
// dosing constants, contraindication thresholds and commercially common
// fixed concentrations. The document is loaded from YAML once at startup,
// validated, and published through an atomic snapshot container; a published
// Formulary is never mutated.
package formulary

// Formulary is the root of the dosing configuration document.
type Formulary struct {
	Drugs map[string]Drug `yaml:"drugs" json:"drugs"`
}

// Drug holds the dosing rules and contraindication thresholds for one drug.
type Drug struct {
	// Key is the map key the drug was registered under, filled in by the
	// parser for convenience.
	Key string `yaml:"-" json:"key"`

	// AbsoluteMinAgeMonths is a hard floor below which the drug is
	// contraindicated outright (paracetamol: 2 months). Zero means the drug
	// declares no absolute floor beyond the universal one.
	AbsoluteMinAgeMonths int `yaml:"absolute_min_age_months" json:"absolute_min_age_months,omitempty"`

	// MinAgeMonths is the over-the-counter recommendation floor.
	MinAgeMonths int `yaml:"min_age_months" json:"min_age_months"`

	// MinWeightKg is a drug-level weight floor enforced regardless of age
	// (ibuprofen: 5 kg). Zero means no drug-level weight floor.
	MinWeightKg float64 `yaml:"min_weight_kg" json:"min_weight_kg,omitempty"`

	// TargetMgPerKg is the fixed per-dose target. When zero, the midpoint of
	// SingleDoseRangeMgPerKg is used instead.
	TargetMgPerKg float64 `yaml:"target_mg_per_kg" json:"target_mg_per_kg,omitempty"`

	// SingleDoseRangeMgPerKg is the accepted [low, high] single-dose range.
	SingleDoseRangeMgPerKg []float64 `yaml:"mg_per_kg_single_dose_range" json:"mg_per_kg_single_dose_range"`

	MinIntervalHours int     `yaml:"min_interval_hours" json:"min_interval_hours"`
	MaxDailyMgPerKg  float64 `yaml:"max_daily_mg_per_kg" json:"max_daily_mg_per_kg"`

	Routes map[string]Route `yaml:"routes" json:"routes"`
}

// Route groups the fixed concentrations available for one administration route.
type Route struct {
	FixedConcentrations []FixedConcentration `yaml:"fixed_concentrations" json:"fixed_concentrations"`
}

// FixedConcentration describes a commercially common strength. It may carry
// stricter gates than the drug-level defaults and an optional per-age-band
// volume hint table.
type FixedConcentration struct {
	MgPerMl float64 `yaml:"mg_per_ml" json:"mg_per_ml"`
	Label   string  `yaml:"label" json:"label"`

	// MinWeightKg and MinAgeMonths, when non-zero, are contraindication
	// floors specific to this strength.
	MinWeightKg  float64 `yaml:"min_weight_kg" json:"min_weight_kg,omitempty"`
	MinAgeMonths int     `yaml:"min_age_months" json:"min_age_months,omitempty"`

	AgeBandMl []AgeBand `yaml:"age_band_ml" json:"age_band_ml,omitempty"`
}

// AgeBand maps an inclusive age range in months to the volume guardians are
// usually advised to give at this concentration. Advisory only.
type AgeBand struct {
	MinMonths int     `yaml:"min_months" json:"min_months"`
	MaxMonths int     `yaml:"max_months" json:"max_months"`
	Ml        float64 `yaml:"ml" json:"ml"`
}

// Drug returns the entry for the given key.
func (f *Formulary) Drug(key string) (Drug, bool) {
	if f == nil || f.Drugs == nil {
		return Drug{}, false
	}
	d, ok := f.Drugs[key]
	return d, ok
}

// DrugCount returns the number of configured drugs.
func (f *Formulary) DrugCount() int {
	if f == nil {
		return 0
	}
	return len(f.Drugs)
}

// TargetMgPerKgOrMidpoint returns the fixed per-dose target, falling back to
// the midpoint of the single-dose range for drugs without a fixed constant.
func (d Drug) TargetMgPerKgOrMidpoint() float64 {
	if d.TargetMgPerKg > 0 {
		return d.TargetMgPerKg
	}
	if len(d.SingleDoseRangeMgPerKg) == 2 {
		return (d.SingleDoseRangeMgPerKg[0] + d.SingleDoseRangeMgPerKg[1]) / 2
	}
	return 0
}

// FixedConcentration finds the declared strength matching mgPerMl on the
// given route.
func (d Drug) FixedConcentration(route string, mgPerMl float64) (FixedConcentration, bool) {
	r, ok := d.Routes[route]
	if !ok {
		return FixedConcentration{}, false
	}
	for _, fc := range r.FixedConcentrations {
		if fc.MgPerMl == mgPerMl {
			return fc, true
		}
	}
	return FixedConcentration{}, false
}

// BandMl returns the advisory volume for the given age, when this strength
// declares an age-band table covering it.
func (fc FixedConcentration) BandMl(ageMonths int) (float64, bool) {
	for _, band := range fc.AgeBandMl {
		if ageMonths >= band.MinMonths && ageMonths <= band.MaxMonths {
			return band.Ml, true
		}
	}
	return 0, false
}

package formulary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Concentration plausibility bounds in mg/mL, shared with the dose
// calculator. No paediatric liquid antipyretic is stronger than 200 mg/mL.
const (
	MinConcentrationMgPerMl = 0.0
	MaxConcentrationMgPerMl = 200.0
)

// Parser reads and validates formulary YAML documents.
type Parser struct{}

// NewParser creates a formulary parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads, parses and validates a formulary document. A document
// that fails validation is rejected as a whole so a half-broken formulary
// can never be published.
func (p *Parser) ParseFile(path string) (*Formulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read formulary %s: %w", path, err)
	}

	var f Formulary
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse formulary %s: %w", path, err)
	}

	for key, drug := range f.Drugs {
		drug.Key = key
		f.Drugs[key] = drug
	}

	if err := Validate(&f); err != nil {
		return nil, fmt.Errorf("invalid formulary %s: %w", path, err)
	}

	return &f, nil
}

// Validate checks the structural and medical sanity of a formulary document.
func Validate(f *Formulary) error {
	if f == nil || len(f.Drugs) == 0 {
		return fmt.Errorf("formulary declares no drugs")
	}

	for key, drug := range f.Drugs {
		if err := validateDrug(key, drug); err != nil {
			return err
		}
	}

	return nil
}

func validateDrug(key string, d Drug) error {
	if key == "" {
		return fmt.Errorf("drug with empty key")
	}

	if len(d.SingleDoseRangeMgPerKg) != 2 {
		return fmt.Errorf("drug %s: mg_per_kg_single_dose_range must have exactly two values", key)
	}
	lo, hi := d.SingleDoseRangeMgPerKg[0], d.SingleDoseRangeMgPerKg[1]
	if lo <= 0 || hi < lo {
		return fmt.Errorf("drug %s: invalid single dose range [%g, %g]", key, lo, hi)
	}

	if d.TargetMgPerKg < 0 {
		return fmt.Errorf("drug %s: target_mg_per_kg cannot be negative", key)
	}
	if d.TargetMgPerKg > 0 && (d.TargetMgPerKg < lo || d.TargetMgPerKg > hi) {
		return fmt.Errorf("drug %s: target_mg_per_kg %g outside declared range [%g, %g]",
			key, d.TargetMgPerKg, lo, hi)
	}

	if d.MinIntervalHours <= 0 {
		return fmt.Errorf("drug %s: min_interval_hours must be positive", key)
	}
	if d.MaxDailyMgPerKg <= 0 {
		return fmt.Errorf("drug %s: max_daily_mg_per_kg must be positive", key)
	}
	if d.MinAgeMonths < 0 || d.AbsoluteMinAgeMonths < 0 {
		return fmt.Errorf("drug %s: age floors cannot be negative", key)
	}
	if d.MinWeightKg < 0 {
		return fmt.Errorf("drug %s: min_weight_kg cannot be negative", key)
	}

	for route, r := range d.Routes {
		for _, fc := range r.FixedConcentrations {
			if err := validateConcentration(key, route, fc); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateConcentration(drug, route string, fc FixedConcentration) error {
	if fc.MgPerMl <= MinConcentrationMgPerMl || fc.MgPerMl > MaxConcentrationMgPerMl {
		return fmt.Errorf("drug %s route %s: concentration %g mg/mL out of range (0, %g]",
			drug, route, fc.MgPerMl, MaxConcentrationMgPerMl)
	}
	if fc.Label == "" {
		return fmt.Errorf("drug %s route %s: concentration %g mg/mL has no label", drug, route, fc.MgPerMl)
	}
	if fc.MinWeightKg < 0 || fc.MinAgeMonths < 0 {
		return fmt.Errorf("drug %s route %s: concentration %g mg/mL has negative floors",
			drug, route, fc.MgPerMl)
	}

	prevMax := -1
	for _, band := range fc.AgeBandMl {
		if band.Ml <= 0 {
			return fmt.Errorf("drug %s route %s: age band with non-positive volume", drug, route)
		}
		if band.MinMonths > band.MaxMonths {
			return fmt.Errorf("drug %s route %s: age band %d-%d months is inverted",
				drug, route, band.MinMonths, band.MaxMonths)
		}
		// Bands must be declared ascending and non-overlapping so lookup is
		// unambiguous.
		if band.MinMonths <= prevMax {
			return fmt.Errorf("drug %s route %s: age bands overlap or are out of order", drug, route)
		}
		prevMax = band.MaxMonths
	}

	return nil
}

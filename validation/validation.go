// Package validation holds the input checks applied at the API boundary
// before anything reaches the calculator or the ledger.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Plausibility bounds for guardian-supplied measurements. Values outside
// these are assumed to be unit mistakes (grams instead of kilograms, years
// instead of months) rather than real children.
const (
	MaxWeightKg  = 150.0
	MaxAgeMonths = 216 // 18 years
)

var (
	drugKeyPattern    = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,63}$`)
	guardianIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// ValidateGuardianID checks the opaque guardian identifier.
func ValidateGuardianID(id string) error {
	if id == "" {
		return fmt.Errorf("guardian_id is required")
	}
	if !guardianIDPattern.MatchString(id) {
		return fmt.Errorf("guardian_id contains invalid characters or is too long")
	}
	return nil
}

// ValidateDrugKey checks the shape of a formulary drug key. Whether the key
// exists in the formulary is the calculator's decision, not a validation
// error.
func ValidateDrugKey(key string) error {
	if key == "" {
		return fmt.Errorf("drug_key is required")
	}
	if !drugKeyPattern.MatchString(key) {
		return fmt.Errorf("drug_key %q is not a valid drug identifier", key)
	}
	return nil
}

// ValidateWeight checks that a body weight is plausible for a child.
func ValidateWeight(weightKg float64) error {
	if weightKg <= 0 {
		return fmt.Errorf("weight_kg must be positive")
	}
	if weightKg > MaxWeightKg {
		return fmt.Errorf("weight_kg %g exceeds the plausible maximum of %g kg, check the unit", weightKg, MaxWeightKg)
	}
	return nil
}

// ValidateAgeMonths checks an optional age. A nil age is valid: age gates
// are simply skipped downstream.
func ValidateAgeMonths(ageMonths *int) error {
	if ageMonths == nil {
		return nil
	}
	if *ageMonths < 0 {
		return fmt.Errorf("age_months cannot be negative")
	}
	if *ageMonths > MaxAgeMonths {
		return fmt.Errorf("age_months %d exceeds the paediatric maximum of %d months", *ageMonths, MaxAgeMonths)
	}
	return nil
}

// ValidateConcentration checks that a concentration is a positive number.
// The medical plausibility window is enforced by the calculator so the
// guardian gets a dosing flag rather than a transport error.
func ValidateConcentration(mgPerMl float64) error {
	if mgPerMl < 0 {
		return fmt.Errorf("concentration_mg_per_ml cannot be negative")
	}
	return nil
}

// NormalizeChildName canonicalizes a child name for ledger scoping so the
// same sibling matches regardless of how the name was typed: compatibility
// normalization, case folding and whitespace collapsing. An empty result
// means the record is unscoped.
func NormalizeChildName(name string) string {
	folded := cases.Fold().String(norm.NFKC.String(name))
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(folded, " "))
}

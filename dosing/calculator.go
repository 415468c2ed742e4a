package dosing

import (
	"fmt"
	"math"
	"time"

	"github.com/pediadose/pediadose-api/formulary"
)

// UniversalMinAgeMonths is the age floor applied to every antipyretic
// regardless of drug: under 3 months, fever is a red flag that needs an
// urgent in-person assessment, not an over-the-counter dose.
const UniversalMinAgeMonths = 3

// Calculator evaluates dose requests against a formulary snapshot.
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// NewCalculatorAt creates a calculator with an injected clock. Used by tests
// to pin interval boundaries.
func NewCalculatorAt(now func() time.Time) *Calculator {
	return &Calculator{now: now}
}

// Evaluate runs the ordered safety-gate pipeline and, when every gate
// passes, computes the single dose. The gate order is load-bearing: the
// first failing gate determines the message the guardian sees, so it must
// not be reordered.
func (c *Calculator) Evaluate(req Request, form *formulary.Formulary) Result {
	route := req.Route
	if route == "" {
		route = RouteOral
	}

	// Gate 1: the drug must exist in the formulary.
	drug, ok := form.Drug(req.DrugKey)
	if !ok {
		return reject(FlagUnknownDrug,
			"Unknown drug. Check the name on the packaging and try again.")
	}

	// Gate 2: drug-specific absolute age floor (only if age is known).
	if drug.AbsoluteMinAgeMonths > 0 && req.AgeMonths != nil && *req.AgeMonths < drug.AbsoluteMinAgeMonths {
		return reject(FlagAbsoluteAgeRestriction, fmt.Sprintf(
			"For %s: age under %d months is a contraindication without direct medical advice. Please discuss this with a paediatrician.",
			req.DrugKey, drug.AbsoluteMinAgeMonths))
	}

	// Gate 3: universal age floor. The fever note is advisory only.
	if req.AgeMonths != nil && *req.AgeMonths < UniversalMinAgeMonths {
		return reject(FlagAgeUnderThreeMonths,
			"The child is younger than 3 months. Do not give an antipyretic without a doctor's prescription. "+
				"A temperature of 38 °C or higher at this age is a red flag: it needs urgent in-person medical assessment.")
	}

	// Gate 4: formulary-declared over-the-counter age floor.
	if req.AgeMonths != nil && *req.AgeMonths < drug.MinAgeMonths {
		return reject(FlagAgeRestriction,
			"This drug is not recommended at this age without a prescription. Please discuss it with a paediatrician.")
	}

	// Gate 5: drug-level weight floor, enforced regardless of age.
	if drug.MinWeightKg > 0 && req.WeightKg < drug.MinWeightKg {
		return reject(FlagWeightRestriction, fmt.Sprintf(
			"For %s: body weight under %g kg is a contraindication without medical advice. Please see a paediatrician.",
			req.DrugKey, drug.MinWeightKg))
	}

	// Gate 6: concentration-specific floors. A declared fixed strength may
	// carry stricter gates than the drug-level defaults, so this rejects
	// even when gate 5 passed.
	conc, concKnown := drug.FixedConcentration(route, req.ConcentrationMgPerMl)
	if concKnown {
		if conc.MinWeightKg > 0 && req.WeightKg < conc.MinWeightKg {
			return reject(FlagConcentrationWeight, fmt.Sprintf(
				"For %s %s: body weight under %g kg is a contraindication for this concentration. A paediatrician consultation is needed.",
				req.DrugKey, conc.Label, conc.MinWeightKg))
		}
		if conc.MinAgeMonths > 0 && req.AgeMonths != nil && *req.AgeMonths < conc.MinAgeMonths {
			return reject(FlagConcentrationAge, fmt.Sprintf(
				"For %s %s: age under %d months is a contraindication for this concentration. A paediatrician consultation is needed.",
				req.DrugKey, conc.Label, conc.MinAgeMonths))
		}
	}

	// Gate 7: concentration plausibility.
	if req.ConcentrationMgPerMl <= formulary.MinConcentrationMgPerMl ||
		req.ConcentrationMgPerMl > formulary.MaxConcentrationMgPerMl {
		return reject(FlagBadConcentration,
			"Please check the concentration printed on the bottle (mg/mL).")
	}

	// Steps 8-9: single dose from the fixed per-drug target.
	target := drug.TargetMgPerKgOrMidpoint()
	doseMg := req.WeightKg * target

	// Gate 10: minimum redosing interval.
	if req.LastDoseAt != nil {
		minNext := req.LastDoseAt.Add(time.Duration(drug.MinIntervalHours) * time.Hour)
		if c.now().Before(minNext) {
			r := reject(FlagIntervalViolation, fmt.Sprintf(
				"Too early for the next dose. The minimum interval is %d h.", drug.MinIntervalHours))
			r.MinNextTime = &minNext
			return r
		}
	}

	// Gate 11: cumulative 24-hour maximum.
	maxDaily := drug.MaxDailyMgPerKg * req.WeightKg
	if req.DailyTotalMg+doseMg > maxDaily {
		return reject(FlagMaxDailyExceeded,
			"The 24-hour maximum would be exceeded. Review the earlier doses and contact a paediatrician if in doubt.")
	}

	// Step 12: mg to mL at the given concentration, nearest 0.5 mL.
	doseMl := roundToHalfMl(doseMg / req.ConcentrationMgPerMl)

	msg := fmt.Sprintf(
		"Single dose calculated from body weight (guidance only, not a substitute for medical advice). Calculated at %g mg/kg per dose.",
		target)

	res := Result{
		OK:               true,
		Message:          msg,
		Flags:            []Flag{},
		DoseMg:           roundHalfUp(doseMg),
		DoseMl:           doseMl,
		DailyRemainingMg: roundHalfUp(maxDaily - (req.DailyTotalMg + doseMg)),
	}

	// Non-binding age-band hint, only when the formulary supplies one.
	if concKnown && req.AgeMonths != nil {
		if bandMl, found := conc.BandMl(*req.AgeMonths); found {
			res.VolumeHintMl = bandMl
			res.Message += fmt.Sprintf(
				" Age-based guidance for %s is usually about %.1f mL.", conc.Label, bandMl)
		}
	}

	return res
}

// roundToHalfMl rounds to the nearest 0.5 mL. Exact quarter-millilitre ties
// round half up (2.25 becomes 2.5), keeping the result a syringe-measurable
// volume that never drops below the computed dose at the tie point.
func roundToHalfMl(ml float64) float64 {
	return math.Floor(ml*2+0.5) / 2
}

// roundHalfUp rounds to the nearest integer, ties away from zero.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

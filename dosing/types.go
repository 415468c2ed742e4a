// Package dosing computes a single antipyretic dose for a child from weight
// and age, enforcing an ordered pipeline of medical safety gates. The
// calculator is pure: it never touches storage, and identical inputs always
// produce identical results.
package dosing

import "time"

// RouteOral is the default administration route when a request leaves the
// route empty.
const RouteOral = "oral"

// Flag identifies the safety gate that rejected an evaluation. At most one
// flag fires per evaluation because gates short-circuit.
type Flag string

const (
	FlagUnknownDrug            Flag = "unknown_drug"
	FlagAbsoluteAgeRestriction Flag = "absolute_age_restriction"
	FlagAgeUnderThreeMonths    Flag = "age_under_3_months"
	FlagAgeRestriction         Flag = "age_restriction"
	FlagWeightRestriction      Flag = "weight_restriction"
	FlagConcentrationWeight    Flag = "concentration_weight_restriction"
	FlagConcentrationAge       Flag = "concentration_age_restriction"
	FlagBadConcentration       Flag = "bad_concentration"
	FlagIntervalViolation      Flag = "interval_violation"
	FlagMaxDailyExceeded       Flag = "max_daily_exceeded"
)

// Request carries the already-validated inputs for one dose evaluation.
// Callers are responsible for sourcing DailyTotalMg from the dose ledger;
// the calculator and the ledger are not auto-wired.
type Request struct {
	// AgeMonths is optional: when nil, every age gate is skipped.
	AgeMonths *int `json:"age_months,omitempty"`

	// WeightKg must be positive; non-numeric or out-of-range weights are the
	// caller's responsibility to reject before this point.
	WeightKg float64 `json:"weight_kg"`

	DrugKey string `json:"drug_key"`

	// Route defaults to oral when empty.
	Route string `json:"route,omitempty"`

	ConcentrationMgPerMl float64 `json:"concentration_mg_per_ml"`

	// LastDoseAt, when set, arms the minimum-interval gate.
	LastDoseAt *time.Time `json:"last_dose_at,omitempty"`

	// DailyTotalMg is the cumulative amount already given in the trailing
	// 24 hours, as reported by the ledger.
	DailyTotalMg float64 `json:"daily_total_mg"`
}

// Result is the outcome of one evaluation. A rejection is an ordinary
// result with OK=false and a flag, never an error: the caller must gather
// different input or escalate to a clinician, not retry.
//
// Invariant: a failed result never carries DoseMg or DoseMl.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Flags   []Flag `json:"flags"`

	DoseMg float64 `json:"dose_mg,omitempty"`
	// DoseMl is always a multiple of 0.5.
	DoseMl float64 `json:"dose_ml,omitempty"`

	// MinNextTime is set only on interval violations: the earliest instant
	// the next dose becomes eligible.
	MinNextTime *time.Time `json:"min_next_time,omitempty"`

	DailyRemainingMg float64 `json:"daily_remaining_mg,omitempty"`

	// VolumeHintMl is a non-binding age-band volume hint, present only when
	// the formulary declares one for the matched concentration and the age
	// is known.
	VolumeHintMl float64 `json:"volume_hint_ml,omitempty"`
}

func reject(flag Flag, message string) Result {
	return Result{OK: false, Message: message, Flags: []Flag{flag}}
}

// Package ledger records administered doses and answers the trailing
// 24-hour questions the dose calculator needs: how much was already given,
// and when the last dose happened. Records older than the window are pruned
// on every read and write, so the store never answers from stale data.
package ledger

import "time"

// Window is the sliding aggregation window. Everything older is medically
// irrelevant and gets pruned.
const Window = 24 * time.Hour

// Metadata carries the display details of a recorded dose. It never
// participates in safety aggregation; only DoseMg does.
type Metadata struct {
	Form      string  `json:"form,omitempty"`
	DoseMl    float64 `json:"dose_ml,omitempty"`
	ConcLabel string  `json:"conc_label,omitempty"`
	WeightKg  float64 `json:"weight_kg,omitempty"`
	DoseText  string  `json:"dose_text,omitempty"`
}

// Event is one administered dose. Events are append-only: a mistaken entry
// is corrected by medical review, not by editing history.
type Event struct {
	ID         string   `json:"id"`
	GuardianID string   `json:"guardian_id"`
	// ChildName is the normalized child scope. Empty means the guardian did
	// not name a child; such records are visible to unscoped queries only.
	ChildName string   `json:"child_name,omitempty"`
	DrugKey   string   `json:"drug_key"`
	DoseMg    float64  `json:"dose_mg"`
	Metadata  Metadata `json:"metadata"`
	// CreatedAt is always UTC.
	CreatedAt time.Time `json:"created_at"`
}

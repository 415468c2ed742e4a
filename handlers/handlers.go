// Package handlers provides HTTP request handlers for the dosing API
// endpoints: dose evaluation, dose recording, history listing and health
// checks, with input validation and error handling.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pediadose/pediadose-api/dosing"
	"github.com/pediadose/pediadose-api/interfaces"
	"github.com/pediadose/pediadose-api/ledger"
	"github.com/pediadose/pediadose-api/logging"
	"github.com/pediadose/pediadose-api/metrics"
	"github.com/pediadose/pediadose-api/validation"
)

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// EvaluateRequest is the body of POST /v1/dose/evaluate. When GuardianID is
// set, the trailing 24-hour total and the last dose time come from the
// ledger and the body-supplied values are ignored.
type EvaluateRequest struct {
	AgeMonths            *int       `json:"age_months,omitempty"`
	WeightKg             float64    `json:"weight_kg"`
	DrugKey              string     `json:"drug_key"`
	Route                string     `json:"route,omitempty"`
	ConcentrationMgPerMl float64    `json:"concentration_mg_per_ml"`
	GuardianID           string     `json:"guardian_id,omitempty"`
	ChildName            string     `json:"child_name,omitempty"`
	LastDoseAt           *time.Time `json:"last_dose_at,omitempty"`
	DailyTotalMg         float64    `json:"daily_total_mg,omitempty"`
}

func validateEvaluateRequest(req *EvaluateRequest) error {
	if err := validation.ValidateDrugKey(req.DrugKey); err != nil {
		return err
	}
	if err := validation.ValidateWeight(req.WeightKg); err != nil {
		return err
	}
	if err := validation.ValidateAgeMonths(req.AgeMonths); err != nil {
		return err
	}
	if err := validation.ValidateConcentration(req.ConcentrationMgPerMl); err != nil {
		return err
	}
	if req.GuardianID != "" {
		return validation.ValidateGuardianID(req.GuardianID)
	}
	return nil
}

// EvaluateDose runs the safety-gate pipeline against the current formulary.
// A rejected dose is still HTTP 200: the rejection is the answer. Only an
// unreadable ledger or a malformed request map to error codes.
func EvaluateDose(calc *dosing.Calculator, form interfaces.FormularySource, doses interfaces.DoseLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EvaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		if err := validateEvaluateRequest(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		lastDoseAt := req.LastDoseAt
		dailyTotal := req.DailyTotalMg

		if req.GuardianID != "" {
			child := validation.NormalizeChildName(req.ChildName)

			total, err := doses.SumLast24h(r.Context(), req.GuardianID, req.DrugKey, child)
			if err != nil {
				respondLedgerError(w, "sum", err)
				return
			}
			metrics.ObserveLedgerOp("sum", "ok")
			dailyTotal = total

			last, err := doses.LastDose(r.Context(), req.GuardianID, req.DrugKey, child)
			if err != nil {
				respondLedgerError(w, "last", err)
				return
			}
			metrics.ObserveLedgerOp("last", "ok")
			if last != nil {
				lastDoseAt = &last.CreatedAt
			} else {
				lastDoseAt = nil
			}
		}

		result := calc.Evaluate(dosing.Request{
			AgeMonths:            req.AgeMonths,
			WeightKg:             req.WeightKg,
			DrugKey:              req.DrugKey,
			Route:                req.Route,
			ConcentrationMgPerMl: req.ConcentrationMgPerMl,
			LastDoseAt:           lastDoseAt,
			DailyTotalMg:         dailyTotal,
		}, form.Current())

		if result.OK {
			metrics.ObserveEvaluation(req.DrugKey, "ok")
		} else {
			metrics.ObserveEvaluation(req.DrugKey, string(result.Flags[0]))
		}

		RespondWithJSON(w, http.StatusOK, result)
	}
}

// RecordRequest is the body of POST /v1/dose/events.
type RecordRequest struct {
	GuardianID string          `json:"guardian_id"`
	ChildName  string          `json:"child_name,omitempty"`
	DrugKey    string          `json:"drug_key"`
	DoseMg     float64         `json:"dose_mg"`
	Metadata   ledger.Metadata `json:"metadata,omitempty"`
}

// RecordDose appends one administered dose to the ledger.
func RecordDose(doses interfaces.DoseLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		stored, err := doses.Append(r.Context(), ledger.Event{
			GuardianID: req.GuardianID,
			ChildName:  req.ChildName,
			DrugKey:    req.DrugKey,
			DoseMg:     req.DoseMg,
			Metadata:   req.Metadata,
		})
		if err != nil {
			respondLedgerError(w, "append", err)
			return
		}

		metrics.ObserveLedgerOp("append", "ok")
		RespondWithJSON(w, http.StatusCreated, stored)
	}
}

// ListDoseEvents returns the guardian's trailing 24-hour dose history.
// Requires guardian_id; drug and child narrow the listing.
func ListDoseEvents(doses interfaces.DoseLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guardianID := r.URL.Query().Get("guardian_id")
		drugKey := r.URL.Query().Get("drug")
		child := validation.NormalizeChildName(r.URL.Query().Get("child"))

		events, err := doses.ListLast24h(r.Context(), guardianID, drugKey)
		if err != nil {
			respondLedgerError(w, "list", err)
			return
		}
		if child != "" {
			scoped := events[:0]
			for _, e := range events {
				if e.ChildName == child {
					scoped = append(scoped, e)
				}
			}
			events = scoped
		}
		if events == nil {
			events = []ledger.Event{}
		}

		metrics.ObserveLedgerOp("list", "ok")
		RespondWithJSON(w, http.StatusOK, map[string]any{
			"guardian_id": guardianID,
			"count":       len(events),
			"events":      events,
		})
	}
}

// respondLedgerError maps ledger failures to HTTP codes. An unreadable
// ledger is 503, never a silent zero: unknown history cannot be called safe.
func respondLedgerError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		metrics.ObserveLedgerOp(op, "invalid")
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrSafetyUnknown):
		metrics.ObserveLedgerOp(op, "unavailable")
		logging.Error("Dose ledger unavailable", "op", op, "error", err.Error())
		RespondWithError(w, http.StatusServiceUnavailable,
			"Dose history is temporarily unavailable, cannot determine safety. Try again shortly.")
	default:
		metrics.ObserveLedgerOp(op, "error")
		logging.Error("Dose ledger operation failed", "op", op, "error", err.Error())
		RespondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}

// HealthCheck reports service health
func HealthCheck(checker interfaces.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, data, httpStatus := checker.HealthCheck(r.Context())

		response := map[string]any{
			"status":  status,
			"details": data,
		}
		RespondWithJSON(w, httpStatus, response)
	}
}

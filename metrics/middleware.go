package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records the HTTP triple for every request. The path label uses
// the chi route pattern, not the raw URL, so guardian identifiers never
// become label values.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		HTTPRequestInFlight.Inc()
		defer HTTPRequestInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapped, r)

		path := chi.RouteContext(r.Context()).RoutePattern()

		HTTPRequestTotals.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(time.Since(start).Seconds())
	})
}

// ObserveEvaluation records one calculator outcome.
func ObserveEvaluation(drug, flag string) {
	if drug == "" {
		drug = "unknown"
	}
	DoseEvaluationsTotal.WithLabelValues(drug, flag).Inc()
}

// ObserveLedgerOp records one ledger operation outcome.
func ObserveLedgerOp(op, outcome string) {
	LedgerOperationsTotal.WithLabelValues(op, outcome).Inc()
}

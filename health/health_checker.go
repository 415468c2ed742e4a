// Package health provides health checking functionality for the dosing API.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/pediadose/pediadose-api/interfaces"
)

// Pinger is the slice of a storage backend the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	formulary interfaces.FormularySource
	store     Pinger
	startTime time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(formulary interfaces.FormularySource, store Pinger) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		formulary: formulary,
		store:     store,
		startTime: time.Now(),
	}
}

// HealthCheck returns HTTP-specific health data.
// Used by the /health endpoint.
//
// The service is unhealthy without a usable formulary or a reachable dose
// ledger: both are required before any dose can be declared safe. A
// formulary older than 48 hours only degrades, the dosing constants change
// rarely.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	form := h.formulary.Current()
	lastLoaded := h.formulary.LastLoaded()
	isLoading := h.formulary.IsLoading()

	formularyAge := time.Since(lastLoaded)

	var storeErr error
	if h.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		storeErr = h.store.Ping(pingCtx)
	}

	switch {
	case form.DrugCount() == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case storeErr != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case formularyAge > 48*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"formulary_loaded_at": lastLoaded.Format(time.RFC3339),
		"formulary_age_hours": math.Round(formularyAge.Hours()*10) / 10,
		"drugs":               form.DrugCount(),
		"is_loading":          isLoading,
		"uptime_hours":        math.Round(time.Since(h.startTime).Hours()*10) / 10,
	}
	if storeErr != nil {
		data["store_error"] = storeErr.Error()
	}

	return status, data, httpStatus
}

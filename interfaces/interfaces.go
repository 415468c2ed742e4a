// Package interfaces defines core abstractions for the dosing API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"time"

	"github.com/pediadose/pediadose-api/formulary"
	"github.com/pediadose/pediadose-api/ledger"
)

// FormularySource is the read side of the formulary snapshot. Handlers and
// health checks depend on this, never on the store.
type FormularySource interface {
	// Current returns the published formulary snapshot. Read-only.
	Current() *formulary.Formulary

	// LastLoaded returns the timestamp of the last successful publish.
	LastLoaded() time.Time

	// IsLoading reports whether a reload is in progress.
	IsLoading() bool
}

// FormularyStore adds the update side used by the scheduler. BeginUpdate
// and EndUpdate bracket a reload so concurrent reloads cannot race.
type FormularyStore interface {
	FormularySource

	// Update atomically publishes a new snapshot.
	Update(f *formulary.Formulary)

	// BeginUpdate marks the start of a reload. Returns false if another
	// reload is already in progress.
	BeginUpdate() bool

	// EndUpdate marks the end of a reload.
	EndUpdate()
}

// FormularyParser reads and validates a formulary document from disk.
type FormularyParser interface {
	ParseFile(path string) (*formulary.Formulary, error)
}

// DoseLedger is the contract for the trailing 24-hour dose history.
// Implementations must fail closed: when the history cannot be read, the
// error must surface rather than an empty answer.
type DoseLedger interface {
	// Append records one administered dose and returns it with its assigned
	// identity.
	Append(ctx context.Context, e ledger.Event) (ledger.Event, error)

	// SumLast24h returns the milligrams of drugKey given to the named child
	// in the trailing 24 hours. An empty child aggregates unscoped.
	SumLast24h(ctx context.Context, guardianID, drugKey, child string) (float64, error)

	// ListLast24h returns the guardian's in-window history in ascending time
	// order. An empty drugKey lists every drug.
	ListLast24h(ctx context.Context, guardianID, drugKey string) ([]ledger.Event, error)

	// LastDose returns the most recent in-window dose, or nil when none.
	LastDose(ctx context.Context, guardianID, drugKey, child string) (*ledger.Event, error)

	// HasAny reports whether the guardian recorded any dose in the window.
	HasAny(ctx context.Context, guardianID string) (bool, error)
}

// Scheduler manages the periodic formulary reload and staleness monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports system health for the health endpoint.
type HealthChecker interface {
	// HealthCheck returns current system health status together with the
	// HTTP status code the health endpoint should answer with.
	HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int)
}

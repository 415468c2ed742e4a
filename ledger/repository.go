package ledger

import (
	"context"
	"time"
)

// Repository is the storage contract for dose events. Implementations must
// be safe for concurrent use. All time arguments and stored timestamps are
// UTC.
//
// The child argument scopes a query to one normalized child name; an empty
// child matches every record of the guardian and drug, which supports the
// legacy single-child accounts that never named a child.
type Repository interface {
	// Insert appends one event. The event ID must be unique.
	Insert(ctx context.Context, e Event) error

	// SumSince returns the total milligrams of drug given by guardian to
	// child at or after cutoff.
	SumSince(ctx context.Context, guardianID, drugKey, child string, cutoff time.Time) (float64, error)

	// ListSince returns the guardian's events at or after cutoff in ascending
	// time order. An empty drugKey matches all drugs.
	ListSince(ctx context.Context, guardianID, drugKey string, cutoff time.Time) ([]Event, error)

	// LastSince returns the most recent matching event at or after cutoff,
	// or nil when there is none.
	LastSince(ctx context.Context, guardianID, drugKey, child string, cutoff time.Time) (*Event, error)

	// AnySince reports whether the guardian has any event at or after cutoff.
	AnySince(ctx context.Context, guardianID string, cutoff time.Time) (bool, error)

	// PruneBefore deletes the guardian's events for drugKey strictly older
	// than cutoff. An empty drugKey prunes all of the guardian's drugs.
	PruneBefore(ctx context.Context, guardianID, drugKey string, cutoff time.Time) error
}

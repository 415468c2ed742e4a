package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/pediadose/pediadose-api/logging"
	"github.com/pediadose/pediadose-api/validation"
)

// ErrSafetyUnknown means the ledger could not be read or written after
// retries. Callers must fail closed: a dose whose 24-hour history is unknown
// cannot be declared safe.
var ErrSafetyUnknown = errors.New("cannot determine dose safety: ledger unavailable")

// ErrInvalidInput means the event or query arguments failed validation.
var ErrInvalidInput = errors.New("invalid ledger input")

const (
	defaultRetryAttempts = 4
	defaultRetryInterval = 100 * time.Millisecond
)

// Service wraps a Repository with retries, input validation and the
// sliding-window pruning policy.
type Service struct {
	repo Repository
	now  func() time.Time

	retryAttempts uint64
	retryInterval time.Duration
}

// NewService creates a ledger service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:          repo,
		now:           time.Now,
		retryAttempts: defaultRetryAttempts,
		retryInterval: defaultRetryInterval,
	}
}

// NewServiceAt creates a service with an injected clock. Used by tests to
// pin window boundaries.
func NewServiceAt(repo Repository, now func() time.Time) *Service {
	s := NewService(repo)
	s.now = now
	return s
}

func (s *Service) cutoff() time.Time {
	return s.now().UTC().Add(-Window)
}

// retry runs op with exponential backoff. Exhaustion is wrapped in
// ErrSafetyUnknown so callers can distinguish "unsafe" from "unknown".
func (s *Service) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.retryAttempts), ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSafetyUnknown, err)
	}
	return nil
}

// Append records one administered dose. The child name is normalized before
// storage, the ID and UTC timestamp are assigned here, and records that have
// left the window are pruned on the way.
func (s *Service) Append(ctx context.Context, e Event) (Event, error) {
	if err := validation.ValidateGuardianID(e.GuardianID); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validation.ValidateDrugKey(e.DrugKey); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if e.DoseMg <= 0 {
		return Event{}, fmt.Errorf("%w: dose_mg must be positive", ErrInvalidInput)
	}

	e.ID = uuid.NewString()
	e.ChildName = validation.NormalizeChildName(e.ChildName)
	e.CreatedAt = s.now().UTC()

	if err := s.retry(ctx, func() error { return s.repo.Insert(ctx, e) }); err != nil {
		return Event{}, err
	}

	// Pruning is best effort here; reads prune again before answering.
	if err := s.repo.PruneBefore(ctx, e.GuardianID, e.DrugKey, s.cutoff()); err != nil {
		logging.Warn("Failed to prune expired dose events after insert",
			"guardian_id", e.GuardianID, "error", err.Error())
	}

	return e, nil
}

// SumLast24h returns the milligrams of drugKey given to the named child in
// the trailing 24 hours. An empty child falls back to the legacy unscoped
// aggregate across all of the guardian's records for the drug.
func (s *Service) SumLast24h(ctx context.Context, guardianID, drugKey, child string) (float64, error) {
	if err := validation.ValidateGuardianID(guardianID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validation.ValidateDrugKey(drugKey); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	child = validation.NormalizeChildName(child)
	if child == "" {
		logging.Warn("Unscoped dose aggregation requested, mixes siblings on multi-child accounts",
			"guardian_id", guardianID, "drug_key", drugKey)
	}

	cutoff := s.cutoff()
	if err := s.retry(ctx, func() error {
		return s.repo.PruneBefore(ctx, guardianID, drugKey, cutoff)
	}); err != nil {
		return 0, err
	}

	var total float64
	err := s.retry(ctx, func() error {
		var opErr error
		total, opErr = s.repo.SumSince(ctx, guardianID, drugKey, child, cutoff)
		return opErr
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ListLast24h returns the guardian's dose history inside the window in
// ascending time order. An empty drugKey lists every drug.
func (s *Service) ListLast24h(ctx context.Context, guardianID, drugKey string) ([]Event, error) {
	if err := validation.ValidateGuardianID(guardianID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if drugKey != "" {
		if err := validation.ValidateDrugKey(drugKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	cutoff := s.cutoff()
	if err := s.retry(ctx, func() error {
		return s.repo.PruneBefore(ctx, guardianID, drugKey, cutoff)
	}); err != nil {
		return nil, err
	}

	var events []Event
	err := s.retry(ctx, func() error {
		var opErr error
		events, opErr = s.repo.ListSince(ctx, guardianID, drugKey, cutoff)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// LastDose returns the most recent in-window dose of drugKey for the named
// child, or nil when there is none.
func (s *Service) LastDose(ctx context.Context, guardianID, drugKey, child string) (*Event, error) {
	if err := validation.ValidateGuardianID(guardianID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := validation.ValidateDrugKey(drugKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	child = validation.NormalizeChildName(child)
	cutoff := s.cutoff()

	var last *Event
	err := s.retry(ctx, func() error {
		var opErr error
		last, opErr = s.repo.LastSince(ctx, guardianID, drugKey, child, cutoff)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

// HasAny reports whether the guardian recorded any dose inside the window.
func (s *Service) HasAny(ctx context.Context, guardianID string) (bool, error) {
	if err := validation.ValidateGuardianID(guardianID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var any bool
	err := s.retry(ctx, func() error {
		var opErr error
		any, opErr = s.repo.AnySince(ctx, guardianID, s.cutoff())
		return opErr
	})
	if err != nil {
		return false, err
	}
	return any, nil
}

// Package memory provides an in-memory ledger repository. It backs tests
// and local development; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pediadose/pediadose-api/ledger"
)

// LedgerRepo stores dose events per guardian behind a mutex.
type LedgerRepo struct {
	mu     sync.Mutex
	events map[string][]ledger.Event
}

// NewLedgerRepo creates an empty in-memory repository.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{events: make(map[string][]ledger.Event)}
}

func (r *LedgerRepo) Insert(_ context.Context, e ledger.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.GuardianID] = append(r.events[e.GuardianID], e)
	return nil
}

func matches(e ledger.Event, drugKey, child string) bool {
	if drugKey != "" && e.DrugKey != drugKey {
		return false
	}
	if child != "" && e.ChildName != child {
		return false
	}
	return true
}

func (r *LedgerRepo) SumSince(_ context.Context, guardianID, drugKey, child string, cutoff time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total float64
	for _, e := range r.events[guardianID] {
		if matches(e, drugKey, child) && !e.CreatedAt.Before(cutoff) {
			total += e.DoseMg
		}
	}
	return total, nil
}

func (r *LedgerRepo) ListSince(_ context.Context, guardianID, drugKey string, cutoff time.Time) ([]ledger.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ledger.Event
	for _, e := range r.events[guardianID] {
		if matches(e, drugKey, "") && !e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *LedgerRepo) LastSince(_ context.Context, guardianID, drugKey, child string, cutoff time.Time) (*ledger.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last *ledger.Event
	for _, e := range r.events[guardianID] {
		if !matches(e, drugKey, child) || e.CreatedAt.Before(cutoff) {
			continue
		}
		if last == nil || e.CreatedAt.After(last.CreatedAt) {
			copied := e
			last = &copied
		}
	}
	return last, nil
}

func (r *LedgerRepo) AnySince(_ context.Context, guardianID string, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events[guardianID] {
		if !e.CreatedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (r *LedgerRepo) PruneBefore(_ context.Context, guardianID, drugKey string, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.events[guardianID]
	kept := all[:0]
	for _, e := range all {
		expired := matches(e, drugKey, "") && e.CreatedAt.Before(cutoff)
		if !expired {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(r.events, guardianID)
		return nil
	}
	r.events[guardianID] = kept
	return nil
}

// Ping always succeeds; the map is always reachable.
func (r *LedgerRepo) Ping(_ context.Context) error {
	return nil
}

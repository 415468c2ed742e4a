package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/pediadose/pediadose-api/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 123456789, time.UTC)

	in := ledger.Event{
		ID:         "ev-1",
		GuardianID: "tg:1",
		ChildName:  "anna",
		DrugKey:    "ibuprofen",
		DoseMg:     120,
		Metadata: ledger.Metadata{
			Form:      "suspension",
			DoseMl:    6,
			ConcLabel: "100 mg / 5 mL",
			WeightKg:  12,
			DoseText:  "120 mg (6.0 mL)",
		},
		CreatedAt: now,
	}
	if err := s.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := s.ListSince(ctx, "tg:1", "ibuprofen", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one event, got %d", len(list))
	}

	got := list[0]
	if got.ID != in.ID || got.ChildName != in.ChildName || got.DoseMg != in.DoseMg {
		t.Errorf("event fields changed in storage: %+v", got)
	}
	if got.Metadata != in.Metadata {
		t.Errorf("metadata changed in storage: %+v", got.Metadata)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("timestamp changed in storage: %v != %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestStoreSumAndScoping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	events := []ledger.Event{
		{ID: "a", GuardianID: "tg:1", ChildName: "anna", DrugKey: "ibuprofen", DoseMg: 100, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "b", GuardianID: "tg:1", ChildName: "anna", DrugKey: "ibuprofen", DoseMg: 120, CreatedAt: now.Add(-time.Hour)},
		{ID: "c", GuardianID: "tg:1", ChildName: "boris", DrugKey: "ibuprofen", DoseMg: 90, CreatedAt: now.Add(-time.Hour)},
		{ID: "d", GuardianID: "tg:1", ChildName: "anna", DrugKey: "paracetamol", DoseMg: 180, CreatedAt: now.Add(-time.Hour)},
		{ID: "e", GuardianID: "tg:1", ChildName: "anna", DrugKey: "ibuprofen", DoseMg: 50, CreatedAt: cutoff.Add(-time.Minute)},
	}
	for _, e := range events {
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	scoped, err := s.SumSince(ctx, "tg:1", "ibuprofen", "anna", cutoff)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if scoped != 220 {
		t.Errorf("expected 220 mg scoped to anna inside the window, got %g", scoped)
	}

	unscoped, err := s.SumSince(ctx, "tg:1", "ibuprofen", "", cutoff)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if unscoped != 310 {
		t.Errorf("expected 310 mg unscoped, got %g", unscoped)
	}
}

func TestStoreLastSince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	events := []ledger.Event{
		{ID: "a", GuardianID: "tg:1", ChildName: "anna", DrugKey: "ibuprofen", DoseMg: 100, CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "b", GuardianID: "tg:1", ChildName: "anna", DrugKey: "ibuprofen", DoseMg: 120, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, e := range events {
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	last, err := s.LastSince(ctx, "tg:1", "ibuprofen", "anna", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || last.ID != "b" {
		t.Fatalf("expected the most recent event, got %+v", last)
	}

	none, err := s.LastSince(ctx, "tg:1", "paracetamol", "anna", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for no matching history, got %+v", none)
	}
}

func TestStorePruneBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	events := []ledger.Event{
		{ID: "fresh", GuardianID: "tg:1", DrugKey: "ibuprofen", DoseMg: 120, CreatedAt: now.Add(-time.Hour)},
		{ID: "boundary", GuardianID: "tg:1", DrugKey: "ibuprofen", DoseMg: 80, CreatedAt: cutoff},
		{ID: "stale", GuardianID: "tg:1", DrugKey: "ibuprofen", DoseMg: 100, CreatedAt: cutoff.Add(-time.Second)},
		{ID: "other-drug", GuardianID: "tg:1", DrugKey: "paracetamol", DoseMg: 180, CreatedAt: cutoff.Add(-time.Second)},
	}
	for _, e := range events {
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	if err := s.PruneBefore(ctx, "tg:1", "ibuprofen", cutoff); err != nil {
		t.Fatalf("prune: %v", err)
	}

	list, err := s.ListSince(ctx, "tg:1", "", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	ids := map[string]bool{}
	for _, e := range list {
		ids[e.ID] = true
	}
	if ids["stale"] {
		t.Error("stale event survived pruning")
	}
	if !ids["boundary"] || !ids["fresh"] {
		t.Error("pruning removed in-window events")
	}
	if !ids["other-drug"] {
		t.Error("pruning crossed the drug scope")
	}
}

func TestStoreAnySince(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	any, err := s.AnySince(ctx, "tg:1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("any: %v", err)
	}
	if any {
		t.Error("expected no history in an empty store")
	}

	if err := s.Insert(ctx, ledger.Event{ID: "a", GuardianID: "tg:1", DrugKey: "ibuprofen", DoseMg: 120, CreatedAt: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	any, err = s.AnySince(ctx, "tg:1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("any: %v", err)
	}
	if !any {
		t.Error("expected history after insert")
	}
}

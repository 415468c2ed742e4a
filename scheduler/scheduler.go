// Package scheduler provides automated formulary reloads and staleness
// monitoring. The formulary file is operator-edited, so the service re-reads
// it on a daily schedule and keeps the previous snapshot whenever a reload
// fails validation.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/pediadose/pediadose-api/interfaces"
	"github.com/pediadose/pediadose-api/logging"
)

// Compile-time check to ensure Scheduler implements the Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles formulary reloads and staleness monitoring using
// dependency injection
type Scheduler struct {
	store         interfaces.FormularyStore
	parser        interfaces.FormularyParser
	formularyPath string
	scheduler     *gocron.Scheduler
	stopMonitor   chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.FormularyStore, parser interfaces.FormularyParser, formularyPath string) *Scheduler {
	return &Scheduler{
		store:         store,
		parser:        parser,
		formularyPath: formularyPath,
		scheduler:     gocron.NewScheduler(time.Local),
		stopMonitor:   make(chan struct{}),
	}
}

// Start performs the initial formulary load and schedules the daily reload.
// A failed initial load is fatal: the service must not answer dose requests
// without a validated formulary.
func (s *Scheduler) Start() error {
	if err := s.reload(); err != nil {
		logging.Error("Failed to perform initial formulary load", "error", err)
		return fmt.Errorf("initial formulary load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At("06:00").Do(func() {
		if err := s.reload(); err != nil {
			logging.Error("Failed to reload formulary, keeping previous snapshot", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule formulary reloads", "error", err)
		return fmt.Errorf("failed to schedule formulary reloads: %w", err)
	}

	s.scheduler.StartAsync()
	s.startStalenessMonitoring()

	return nil
}

// Stop stops the scheduler and the staleness monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.stopMonitor)
}

// reload parses the formulary file and publishes it atomically. The old
// snapshot keeps serving readers until the new one is fully validated.
func (s *Scheduler) reload() error {
	if !s.store.BeginUpdate() {
		logging.Info("Formulary reload already in progress, skipping...")
		return nil
	}
	defer s.store.EndUpdate()

	start := time.Now()

	form, err := s.parser.ParseFile(s.formularyPath)
	if err != nil {
		return fmt.Errorf("failed to load formulary: %w", err)
	}

	s.store.Update(form)

	logging.Info("Formulary reload completed",
		"duration", time.Since(start).String(),
		"drug_count", form.DrugCount())

	return nil
}

// startStalenessMonitoring reloads invalidated snapshots and warns when the
// formulary has not been refreshed for more than a day past its schedule
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkStaleness()
			case <-s.stopMonitor:
				return
			}
		}
	}()
}

// checkStaleness runs one monitor pass. An explicitly invalidated snapshot
// (zero load timestamp) is reloaded right away instead of waiting for the
// next scheduled run; a failed reload keeps the previous snapshot serving.
func (s *Scheduler) checkStaleness() {
	lastLoaded := s.store.LastLoaded()

	if lastLoaded.IsZero() {
		logging.Info("Formulary snapshot invalidated, reloading")
		if err := s.reload(); err != nil {
			logging.Error("Failed to reload invalidated formulary, keeping previous snapshot", "error", err)
		}
		return
	}

	if time.Since(lastLoaded) > 25*time.Hour {
		logging.Warn("Formulary hasn't been reloaded in over 25 hours")
	}
}

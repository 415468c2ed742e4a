// Pediadose API is a paediatric antipyretic dosing service. It computes
// weight-based single doses behind layered safety gates and keeps a trailing
// 24-hour ledger of administered doses per guardian and child.
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pediadose/pediadose-api/config"
	"github.com/pediadose/pediadose-api/formulary"
	"github.com/pediadose/pediadose-api/health"
	"github.com/pediadose/pediadose-api/ledger"
	"github.com/pediadose/pediadose-api/logging"
	"github.com/pediadose/pediadose-api/scheduler"
	"github.com/pediadose/pediadose-api/server"
	"github.com/pediadose/pediadose-api/storage/postgres"
	"github.com/pediadose/pediadose-api/storage/sqlite"
)

// ledgerStore is what main needs from a storage backend beyond the
// repository contract.
type ledgerStore interface {
	ledger.Repository
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir, cfg.LogLevel)

	// Formulary: load once now, then reload daily.
	container := formulary.NewContainer()
	sched := scheduler.NewScheduler(container, formulary.NewParser(), cfg.FormularyPath)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start the formulary scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Dose ledger: Postgres when DATABASE_URL is set, embedded SQLite
	// otherwise.
	var store ledgerStore
	if cfg.DatabaseURL != "" {
		store, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logging.Error("Failed to open the postgres dose ledger", "error", err)
			os.Exit(1)
		}
		logging.Info("Dose ledger backed by postgres")
	} else {
		store, err = sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logging.Error("Failed to open the sqlite dose ledger", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		logging.Info("Dose ledger backed by sqlite", "path", cfg.SQLitePath)
	}
	defer store.Close()

	doses := ledger.NewService(store)
	checker := health.NewHealthChecker(container, store)

	srv := server.NewServer(cfg, container, doses, checker)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	httpadapter "tally/internal/adapters/http"
	"tally/internal/adapters/memory"
	pg "tally/internal/adapters/postgres"
	"tally/internal/config"
	"tally/internal/ports"
	dashsvc "tally/internal/services/dashboard"
	mansvc "tally/internal/services/manifest"
	reconsvc "tally/internal/services/reconcile"
	statussvc "tally/internal/services/status"
	"tally/internal/workers/refresher"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "development" {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		manifestRepo ports.ManifestRepository
		ledgerRepo   ports.LedgerRepository
		stateRepo    ports.DashboardStateRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
		manifestRepo, ledgerRepo, stateRepo = db, db, db
		log.Info("using postgres store")
	} else {
		store := memory.NewStore()
		manifestRepo, ledgerRepo, stateRepo = store, store, store
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	dashboard := dashsvc.New(ledgerRepo, stateRepo, cfg.StationTZ)
	manifest := mansvc.New(manifestRepo, ledgerRepo, dashboard)
	reconciler := reconsvc.New(manifestRepo, ledgerRepo, dashboard)
	statuses := statussvc.New(ledgerRepo, manifestRepo, dashboard)

	srv := httpadapter.New(manifest, reconciler, statuses, dashboard, log)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	if cfg.DashboardRefresh > 0 {
		go refresher.Run(ctx, dashboard, cfg.DashboardRefresh, log)
		log.WithField("interval", cfg.DashboardRefresh.String()).Info("dashboard refresher started")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	log.WithField("addr", cfg.ListenAddr).Info("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	}
}

// Command bureau runs the credit-bureau export service: batch generation,
// the export download surface, and reporting consent management.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	bhttp "github.com/rentledger/bureau/internal/adapter/http"
	bnats "github.com/rentledger/bureau/internal/adapter/nats"
	"github.com/rentledger/bureau/internal/adapter/postgres"
	"github.com/rentledger/bureau/internal/adapter/ristretto"
	"github.com/rentledger/bureau/internal/config"
	"github.com/rentledger/bureau/internal/logger"
	"github.com/rentledger/bureau/internal/middleware"
	"github.com/rentledger/bureau/internal/pseudonym"
	"github.com/rentledger/bureau/internal/secrets"
	"github.com/rentledger/bureau/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"org_id", cfg.Bureau.OrgID,
		"consent_scope", cfg.Bureau.ConsentScope,
	)

	// The hashing key is mandatory: pseudonyms must never be derived from
	// a public default.
	vault, err := secrets.NewVault(secrets.EnvLoader(cfg.Bureau.SecretEnv))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	hasher, err := pseudonym.New(vault.Get(cfg.Bureau.SecretEnv))
	if err != nil {
		return fmt.Errorf("pseudonym: %s must be set: %w", cfg.Bureau.SecretEnv, err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	audit, err := bnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = audit.Close() }()

	contentCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer contentCache.Close()

	store := postgres.NewStore(pool)
	provider := postgres.NewSourceProvider(pool)

	generationSvc := service.NewGenerationService(store, provider, hasher, audit, cfg.Bureau)
	exportSvc := service.NewExportService(store, contentCache, audit, cfg.Bureau, cfg.Cache.ContentTTL)
	consentSvc := service.NewConsentService(store, hasher, audit, cfg.Bureau.ConsentScope)

	handlers := &bhttp.Handlers{
		Generation: generationSvc,
		Export:     exportSvc,
		Consents:   consentSvc,
	}

	r := chi.NewRouter()
	r.Use(bhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(bhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler())

	bhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports service liveness.
func healthHandler() http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthStatus{Status: "ok"})
	}
}

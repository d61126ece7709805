package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/flavio-cbz/logistix/internal/adapter/driven/secrets"
	sqliteadapter "github.com/flavio-cbz/logistix/internal/adapter/driven/sqlite"
	"github.com/flavio-cbz/logistix/internal/adapter/driven/vinted"
	httphandler "github.com/flavio-cbz/logistix/internal/adapter/driving/http"
	"github.com/flavio-cbz/logistix/internal/application"
	"github.com/flavio-cbz/logistix/internal/cache"
	"github.com/flavio-cbz/logistix/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on a missing or malformed secret key).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"keepalive_interval", cfg.KeepaliveInterval,
		"max_concurrent", cfg.MaxConcurrent,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	sessionStore := sqliteadapter.NewSessionRepo(db)
	analysisStore := sqliteadapter.NewAnalysisRepo(db)
	codec, err := secrets.NewCodec(cfg.SecretKey)
	if err != nil {
		return err
	}
	marketClient := vinted.NewClient(cfg.MarketplaceBaseURL)

	// 6. Wire application services.
	sessionSvc := application.NewSessionService(sessionStore, codec, marketClient)
	analysisSvc := application.NewAnalysisService(analysisStore)
	cacheStore := cache.New(cfg.AnalysisTTL)
	syncSvc := application.NewSyncService(sessionSvc, analysisSvc, marketClient, cacheStore, application.SyncOptions{
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestSpacing:    cfg.RequestSpacing,
		AnalysisTTL:       cfg.AnalysisTTL,
		KeepaliveInterval: cfg.KeepaliveInterval,
	})

	// 7. Start the background keepalive sweep.
	go syncSvc.Start(ctx)

	// 8. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(sessionSvc, syncSvc, analysisStore, cacheStore, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("logistix started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

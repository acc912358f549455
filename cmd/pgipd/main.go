// Command pgipd runs the PanGenome Insight Platform plugin registry service.
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

	"github.com/pgip-dev/pgip/internal/config"
	"github.com/pgip-dev/pgip/internal/database"
	"github.com/pgip-dev/pgip/internal/jobs"
	"github.com/pgip-dev/pgip/internal/repository"
	"github.com/pgip-dev/pgip/internal/routing"
)

const (
	serviceName    = "PanGenome Insight Platform"
	serviceVersion = "0.1.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Open(settings.DBDriver, settings.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	repo := repository.NewPluginRepository(db)

	seeder, err := repository.NewSeedLoader(settings.SeedDir, repo, logger)
	if err != nil {
		return err
	}
	if settings.SeedEnabled {
		inserted, err := seeder.SeedIfEmpty(ctx)
		if err != nil {
			return err
		}
		if inserted > 0 {
			logger.Info("seeded plugin registry", "inserted", inserted, "dir", settings.SeedDir)
		}
	}
	if settings.WatchManifests {
		if err := seeder.Watch(ctx); err != nil {
			return err
		}
		logger.Info("watching manifest directory", "dir", settings.SeedDir)
	}

	refresher := jobs.NewStatsRefresher(repo, logger)
	if err := refresher.Start(settings.StatsInterval); err != nil {
		return err
	}
	defer refresher.Stop()

	router := routing.NewRouter(routing.Options{
		Repo:           repo,
		Logger:         logger,
		AllowedOrigins: settings.AllowedOrigins,
		ServiceName:    serviceName,
		Version:        serviceVersion,
	})

	server := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("registry listening", "addr", settings.ListenAddr, "driver", settings.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

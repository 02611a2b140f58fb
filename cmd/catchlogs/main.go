package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbonduro/catchlogs/internal/config"
	"github.com/vbonduro/catchlogs/internal/db"
	"github.com/vbonduro/catchlogs/internal/logging"
	"github.com/vbonduro/catchlogs/internal/objectstore/local"
	"github.com/vbonduro/catchlogs/internal/photo"
	"github.com/vbonduro/catchlogs/internal/scheduler"
	"github.com/vbonduro/catchlogs/internal/service"
	"github.com/vbonduro/catchlogs/internal/session"
	"github.com/vbonduro/catchlogs/internal/store"
	"github.com/vbonduro/catchlogs/internal/weather"
	"github.com/vbonduro/catchlogs/internal/web"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, cfgErr := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()
	if cfgErr != nil {
		logger.Warn("invalid configuration, using defaults", "error", cfgErr)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	bucket, err := local.NewBucket(cfg.PhotoPath, cfg.PhotoBucket, cfg.PublicBaseURL, local.WithSigningKey(cfg.PhotoSigningKey))
	if err != nil {
		logger.Error("failed to initialize photo bucket", "error", err)
		return
	}
	if cfg.PhotoSigningKey == "" {
		logger.Info("photo signing disabled, serving public urls")
	}

	resolver := weather.NewResolver(weather.Config{
		ForecastURL: cfg.WeatherForecastURL,
		ArchiveURL:  cfg.WeatherArchiveURL,
		Timeout:     cfg.WeatherTimeout,
		CacheTTL:    cfg.WeatherCacheTTL,
	}, &http.Client{}, logger)

	journalService := service.NewJournalService(
		store.NewJournal(database),
		photo.NewManager(bucket, cfg.PhotoBucket, logger),
		bucket,
		resolver,
		cfg.PinGracePeriod,
		logger,
	)

	sweeper := scheduler.New(journalService, cfg.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("failed to start sweep scheduler", "error", err)
		return
	}
	defer sweeper.Stop()

	server := web.NewServer(journalService, session.New(cfg.SessionTTL), bucket, cfg.TimeZone, logger)
	srv := server.HTTPServer(cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

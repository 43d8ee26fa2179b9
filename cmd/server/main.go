// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/ChargeEase/internal/api/apiutil"
	"github.com/codr1/ChargeEase/internal/api/auth"
	"github.com/codr1/ChargeEase/internal/api/contact"
	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
	"github.com/codr1/ChargeEase/internal/scheduler"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == config.EnvDevelopment {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)
	apiutil.SetProduction(cfg.IsProduction())

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("filename", cfg.Database.Filename).Msg("Failed to open database")
	}
	defer database.Close()

	app, err := newApp(cfg, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer app.Close()

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterBookingJobs(app.bookings, cfg.Scheduler); err != nil {
		log.Fatal().Err(err).Msg("Failed to register booking jobs")
	}
	if err := scheduler.RegisterHousekeepingJob(database, cfg.Scheduler.Housekeeping, auth.IPLimiter(), contact.Limiter()); err != nil {
		log.Fatal().Err(err).Msg("Failed to register housekeeping job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown failed")
		}
	}()

	server := app.server

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Int("port", cfg.App.Port).
			Str("environment", cfg.App.Environment).
			Str("api_prefix", cfg.App.APIPrefix).
			Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownSeconds)*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

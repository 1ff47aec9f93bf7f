package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/oakley-grocery/backend/config"
	"github.com/oakley-grocery/backend/internal/app"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = app.NewLogger(cfg.Log, os.Stderr)
	logger := log.With().Str("component", "main").Logger()

	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("cache", cfg.Cache.Type).
		Msg("starting oakley-grocery backend")

	a, err := app.New(cfg, log.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		stop()
		_ = a.Close()
		os.Exit(1)
	}
}

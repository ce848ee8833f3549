package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("migrate: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.ApplySchema(ctx, cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate: apply schema")
	}
	logger.Info().Msg("migrate: schema up to date")
}

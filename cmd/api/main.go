package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"studio/internal/cloudsync"
	"studio/internal/console"
	"studio/internal/dispatch"
	"studio/internal/generation"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/metrics"
	"studio/internal/poller"
	"studio/internal/providers/acestep"
	"studio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	backend, err := acestep.NewClient(acestep.Options{
		BaseURL:        cfg.BackendBaseURL,
		RequestTimeout: cfg.BackendTimeout,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: backend client")
	}
	builder, err := generation.NewBuilder(generation.Options{Backend: backend, Logger: &logger, Metrics: collector})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: builder")
	}
	statusPoller, err := poller.New(poller.Options{Source: backend, Interval: cfg.PollInterval, Logger: &logger, Metrics: collector})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: poller")
	}

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage")
	}
	cloud, err := cloudsync.Setup(ctx, cfg, backend, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: cloud sync")
	}

	dispatchOpts := dispatch.Options{Logger: &logger, Metrics: collector, Timeout: cfg.CloudSyncTimeout}
	if cloud != nil {
		defer cloud.Close()
		dispatchOpts.Persister = cloud.Syncer
	}
	dispatcher := dispatch.New(dispatchOpts)

	studio, err := console.New(console.Options{
		Builder:    builder,
		Poller:     statusPoller,
		Dispatcher: dispatcher,
		Logger:     &logger,
		Metrics:    collector,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: console")
	}
	dispatcher.BindRecorder(studio)

	app := handlers.NewApp(studio, backend, &logger)
	if cloud != nil {
		app.Songs = cloud.Songs
		app.LibraryFor = cfg.CloudSyncUserID
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Static:          store.Handler(),
		Gatherer:        reg,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := studio.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("cloud sync still running at shutdown")
	}
	logger.Info().Msg("server stopped")
}

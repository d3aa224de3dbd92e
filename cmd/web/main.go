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

	"github.com/AdamBeresnev/op-arena/internal/config"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/events"
	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/AdamBeresnev/op-arena/internal/metrics"
	"github.com/AdamBeresnev/op-arena/internal/middleware"
	"github.com/AdamBeresnev/op-arena/internal/notify"
	"github.com/AdamBeresnev/op-arena/internal/service"
	"github.com/AdamBeresnev/op-arena/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With("env", cfg.AppEnv)
	logging.SetDefault(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	dsn := cfg.DBURL
	if cfg.DBDriver == db.DriverSQLite {
		dsn = db.SQLiteDSN(cfg.DBURL, cfg.DBBusyTimeout)
	}
	database, err := db.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.DBMigrateOnStart {
		if err := db.RunMigrations(database); err != nil {
			return err
		}
		logger.Info("migrations applied", "driver", cfg.DBDriver)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bus := notify.NewBus(logger, 256)
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.NotifyWebhookRate, &http.Client{Timeout: cfg.NotifyTimeout}))
	}
	dispatcher, err := notify.NewDispatcher(bus, cfg.NotifyWorkers, cfg.NotifyTimeout, logger, m, sinks...)
	if err != nil {
		return err
	}
	defer dispatcher.Close()
	defer bus.Close()

	if err := dispatcher.Start(ctx,
		events.TopicEntryRegistered,
		events.TopicEntryRevoked,
		events.TopicBracketBuilt,
		events.TopicBracketDeleted,
	); err != nil {
		return err
	}

	stores := store.New(database)
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithEvents(bus),
		service.WithMetrics(m),
		service.WithRetry(cfg.RegistrationRetry),
	}
	h := &handlers{
		tournaments:   service.NewTournamentService(database, stores, opts...),
		registrations: service.NewRegistrationService(database, stores, stores.Ratings, stores.Users, opts...),
		entries:       service.NewEntryService(database, stores, opts...),
		brackets:      service.NewBracketService(database, stores, opts...),
		validator:     validator.New(),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(h, middleware.NewJWTIdentityProvider(cfg.JWTSecret), registry),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nasser0p/digi-ai/internal/config"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/events"
	"github.com/nasser0p/digi-ai/internal/feed"
	"github.com/nasser0p/digi-ai/internal/logger"
	"github.com/nasser0p/digi-ai/internal/router"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/nasser0p/digi-ai/internal/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info("database connected")

	broker := feed.NewBroker(log)
	s := store.New(pool, func(db database.DBTX) store.Queries { return database.New(db) }, broker, log, store.Config{
		MaxRetries: cfg.TxMaxRetries,
		InstanceID: cfg.InstanceID,
	})

	catalog := service.NewCatalog(s.Queries, cfg.CacheTTL)
	orders := service.NewOrderService(s, catalog, log)
	kitchen := service.NewKitchenService(s, catalog, log)
	floor := service.NewFloorService(s, log)
	finalizer := service.NewFinalizer(s, catalog, service.NewInventoryLedger(log), log)

	hub := ws.NewHub(log)
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			JWTSecret:      cfg.JWTSecret,
			AllowedOrigins: cfg.AllowedOrigins,
			Log:            log,
			Queries:        database.New(pool),
			Catalog:        catalog,
			Orders:         orders,
			Kitchen:        kitchen,
			Floor:          floor,
			Finalizer:      finalizer,
			Hub:            hub,
			WS:             ws.NewHandler(hub, s, kitchen, cfg.JWTSecret, cfg.ViewRefresh, log),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		hub.Relay(ctx, broker)
		return nil
	})
	g.Go(func() error {
		return s.Listen(ctx, pool)
	})

	if cfg.RabbitMQURL != "" {
		pub, err := events.Dial(cfg.RabbitMQURL, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		g.Go(func() error {
			return pub.Run(ctx, broker, cfg.InstanceID)
		})
	}

	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port, "instance_id", cfg.InstanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

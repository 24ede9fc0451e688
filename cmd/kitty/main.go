package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kitty/internal/config"
	"kitty/internal/events"
	apphttp "kitty/internal/http"
	applog "kitty/internal/log"
	"kitty/internal/observability"
	"kitty/internal/store"
	kittysync "kitty/internal/sync"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "kitty",
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	mirror, err := store.NewSQLiteMirror(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite mirror", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer mirror.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, mirror)
	if err != nil {
		logger.Error("Failed to load ledger from mirror", "error", err)
		os.Exit(1)
	}
	logger.Info("Ledger loaded", "transactions", len(st.List()), "db_path", cfg.SQLiteDBPath)

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, no AMQP_URL provided")
	}

	metrics := observability.NewMetrics()
	client := kittysync.NewClient(cfg.RemoteEndpoint)
	reconciler := kittysync.NewReconciler(st, client, metrics, kittysync.Config{
		PollInterval: cfg.PollInterval,
		PushTimeout:  cfg.PushTimeout,
		AutoBackup:   cfg.AutoBackup,
	}, nil)

	srv := apphttp.NewServer(":"+cfg.Port, st, reconciler, publisher, metrics)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return st.Run(gctx)
	})

	g.Go(func() error {
		if err := reconciler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return reconciler.Stop(stopCtx)
	})

	g.Go(func() error {
		logger.Info("Starting kitty server", "port", cfg.Port, "remote_sync", reconciler.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/lmittmann/tint"
	"github.com/riverqueue/river"
	"golang.org/x/sync/errgroup"

	"github.com/deskmind/deskmind/internal"
	"github.com/deskmind/deskmind/internal/background"
	"github.com/deskmind/deskmind/internal/background/ledger_retention_worker"
	"github.com/deskmind/deskmind/internal/background/miner_worker"
	"github.com/deskmind/deskmind/internal/background/queue_maintenance_worker"
	"github.com/deskmind/deskmind/internal/background/triage_worker"
	"github.com/deskmind/deskmind/internal/costgov"
	"github.com/deskmind/deskmind/internal/gateway"
	"github.com/deskmind/deskmind/internal/knowledge"
	"github.com/deskmind/deskmind/internal/learning"
	"github.com/deskmind/deskmind/internal/miner"
	"github.com/deskmind/deskmind/internal/storage"
	"github.com/deskmind/deskmind/internal/triage"
	"github.com/deskmind/deskmind/internal/web"
)

type Config struct {
	DevMode bool `split_words:"true" default:"true"`

	// Database configuration
	Database storage.DatabaseConfig

	// Model gateway configuration
	Gateway gateway.Config

	// Triage configuration
	Triage triage.Config

	// Knowledge mining configuration
	Miner miner.Config

	// Usage ledger retention configuration
	Retention ledger_retention_worker.Config

	SentryDSN string `split_words:"true"`

	// HTTP configuration
	HTTPAddr string `split_words:"true" default:"127.0.0.1:5080"`
}

func main() {
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		envconfig.Usage("deskmind", &Config{})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg, ctx := errgroup.WithContext(ctx)

	log.Println("Running version:", versioninfo.Short())
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("deskmind", &c); err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	if c.DevMode {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}

	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     c.SentryDSN,
			Release: versioninfo.Short(),
		}); err != nil {
			log.Fatalf("error setting up sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Database setup
	if c.DevMode {
		if err := storage.StartPostgresContainer(ctx, c.Database); err != nil {
			log.Fatalf("error setting up dev database: %v", err)
		}
	}
	db, err := storage.New(ctx, c.Database.URL())
	if err != nil {
		log.Fatalf("error setting up database: %v", err)
	}
	defer db.Close()

	// Cost governor setup
	ledgerStore := storage.NewLedgerStore(db)
	limitsStore := storage.NewLimitsStore(db)
	governor, err := costgov.New(ctx, ledgerStore, limitsStore)
	if err != nil {
		log.Fatalf("error setting up cost governor: %v", err)
	}

	// Model gateway setup
	gw := gateway.New(c.Gateway, governor)

	// Triage setup
	ticketStore := storage.NewTicketStore(db)
	articleStore := storage.NewArticleStore(db)
	search := knowledge.New(articleStore, gw)
	limiter := costgov.NewUserLimiter(time.Hour)
	engine := triage.New(c.Triage, gw, search, ticketStore, limiter, governor.Limits().MaxRequestsPerHour)

	// Learning queue and miner setup
	queue := learning.New(storage.NewQueueStore(db))
	kminer := miner.New(c.Miner, gw, queue, ticketStore, articleStore)

	// Background job setup
	workers := river.NewWorkers()
	river.AddWorker(workers, triage_worker.New(engine))
	river.AddWorker(workers, miner_worker.New(kminer))
	river.AddWorker(workers, ledger_retention_worker.New(c.Retention, ledgerStore))
	river.AddWorker(workers, queue_maintenance_worker.New(queue, limiter))
	riverClient, err := background.New(db, workers)
	if err != nil {
		log.Fatalf("error setting up background worker: %v", err)
	}
	if err := background.Setup(riverClient); err != nil {
		log.Fatalf("error scheduling periodic jobs: %v", err)
	}

	service := internal.NewService(riverClient, queue)

	// HTTP server setup
	handler := web.New(service, governor, ticketStore, search)
	server := &http.Server{
		BaseContext: func(listener net.Listener) context.Context { return ctx },
		Addr:        c.HTTPAddr,
		Handler:     handler,
	}

	wg.Go(func() error {
		slog.InfoContext(ctx, "starting river client")
		return riverClient.Start(ctx)
	})
	wg.Go(func() error {
		slog.InfoContext(ctx, "starting metrics server", "addr", c.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})
	wg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
		case <-sig:
			slog.InfoContext(ctx, "shutting down")
			cancel()

			if err := server.Shutdown(context.Background()); err != nil {
				return err
			}
		}

		return nil
	})

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("error running server: %v\n", err)
	}
}

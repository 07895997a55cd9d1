package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	mongoadapter "github.com/robertarktes/yard-sale-vendors/internal/adapters/mongo"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/postgres"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Require(config.KeyDatabaseDSN, config.KeyMongoURI); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "vendors-reconciler")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()
	go observability.ServeMetrics(ctx, cfg.MetricsAddr, logger)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongoadapter.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	escalations := mongoadapter.NewEscalationRepository(mongoClient.Database(mongoadapter.Database), logger)

	logger.WithField("interval", cfg.ReconcileInterval.String()).Info("reconciler started")
	reconcile.New(escalations, repo, logger).Run(ctx, cfg.ReconcileInterval)
	logger.Info("Shutdown reconciler")
}

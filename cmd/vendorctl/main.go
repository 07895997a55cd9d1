package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robertarktes/yard-sale-vendors/internal/adapters/mongo"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/postgres"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/config"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel)

	a := &app{
		cfg: cfg,
		now: time.Now,
		openService: func(ctx context.Context) (*admin.Service, func(), error) {
			return openService(ctx, cfg, logger)
		},
		migrate: func(ctx context.Context) error {
			if err := cfg.Require(config.KeyDatabaseDSN); err != nil {
				return err
			}
			pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(pool)
		},
	}

	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

// openService connects to the registration store, and to the audit trail when MONGO_URI is set.
func openService(ctx context.Context, cfg *config.Config, logger observability.Logger) (*admin.Service, func(), error) {
	if err := cfg.Require(config.KeyDatabaseDSN); err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var auditor admin.Auditor = admin.NewLogAuditor(logger)
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		auditor = mongo.NewAuditLogger(client.Database(mongo.Database), logger)
	}

	return admin.NewService(postgres.NewRepository(pool), auditor, logger), closeAll, nil
}

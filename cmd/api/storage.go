package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dejobratic/checkout/internal/config"
	"github.com/dejobratic/checkout/internal/database"
	idemmemory "github.com/dejobratic/checkout/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/checkout/internal/idempotency/postgres"
	"github.com/dejobratic/checkout/internal/orders/adapters/memory"
	orderspostgres "github.com/dejobratic/checkout/internal/orders/adapters/postgres"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

// storage groups the adapters selected by STORAGE_DRIVER.
type storage struct {
	orders      ports.OrderRepository
	catalog     ports.Catalog
	ledger      ports.InventoryLedger
	idempotency ports.IdempotencyStore

	ready func(context.Context) error
	purge func(context.Context) (int64, error)
	close func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		return openMemoryStorage(cfg, logger)
	}
	return openPostgresStorage(ctx, cfg, logger)
}

func openMemoryStorage(cfg *config.Config, logger *slog.Logger) (*storage, error) {
	catalog := memory.NewCatalog()
	if cfg.Storage.CatalogSeedFile != "" {
		count, err := catalog.LoadSeedFile(cfg.Storage.CatalogSeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog seeded", "products", count, "path", cfg.Storage.CatalogSeedFile)
	}

	return &storage{
		orders:      memory.NewRepository(),
		catalog:     catalog,
		ledger:      catalog,
		idempotency: idemmemory.NewStore(cfg.Idempotency.TTL),
		close:       func() {},
	}, nil
}

func openPostgresStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		version, err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
		if err != nil {
			return nil, err
		}
		logger.Info("migrations completed successfully", "version", version)
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL, database.WithPoolConfig(database.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}))
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	catalog := orderspostgres.NewCatalog(pool)
	if cfg.Storage.CatalogSeedFile != "" {
		products, err := memory.ReadSeedFile(cfg.Storage.CatalogSeedFile)
		if err != nil {
			pool.Close()
			return nil, err
		}
		for _, product := range products {
			if err := catalog.Upsert(ctx, product); err != nil {
				pool.Close()
				return nil, fmt.Errorf("seed product %s: %w", product.ID, err)
			}
		}
		logger.Info("catalog seeded", "products", len(products), "path", cfg.Storage.CatalogSeedFile)
	}

	idem := idempostgres.NewStore(pool, cfg.Idempotency.TTL)

	return &storage{
		orders:      orderspostgres.NewRepository(pool),
		catalog:     catalog,
		ledger:      catalog,
		idempotency: idem,
		ready: func(ctx context.Context) error {
			return database.CheckHealth(ctx, pool)
		},
		purge: idem.Purge,
		close: pool.Close,
	}, nil
}

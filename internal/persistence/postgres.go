package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/config"
	"github.com/spec-kit/complaint-desk/internal/repository"
	"github.com/spec-kit/complaint-desk/internal/repository/memory"
)

// Backend owns the ticket store and whatever connection backs it.
type Backend struct {
	Store  repository.Store
	Pool   *pgxpool.Pool
	Memory *memory.Store
}

// Close releases pool resources.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenStore connects to Postgres when a DSN is configured and otherwise falls
// back to an in-process store.
func OpenStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Backend, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; using in-memory store")
		mem := memory.NewStore()
		return &Backend{Store: mem, Memory: mem}, nil
	}

	pool, err := NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres")

	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, DefaultMigrationsDir, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Backend{Store: repository.NewPostgresStore(pool), Pool: pool}, nil
}

// NewPostgresPool builds and verifies a pgx pool.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

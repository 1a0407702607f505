package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/store/pg"
	"trend_bot/pkg/db"
)

const connectTimeout = 10 * time.Second

// Connect поднимает пул, пингует и накатывает схему signals.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pg.Signals, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.Reconcile.Concurrency + cfg.Analysis.Concurrency),
		MaxConnLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	tx := db.NewPgTxManager(poolMaster)
	if err := tx.Ping(ctx); err != nil {
		tx.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	signals := pg.New(tx, log.Named("pg"))
	if err := signals.Migrate(ctx); err != nil {
		tx.Close()
		return nil, err
	}
	log.Info("postgres store ready")
	return signals, nil
}

package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/modules/postgres"
	"trend_bot/internal/store"
	"trend_bot/internal/store/memory"
	"trend_bot/internal/store/sqlite"
)

// Open выбирает реализацию стора по db.driver.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		st, err := postgres.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		st, err := sqlite.Open(cfg.DB.SQLitePath, log.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		log.Warn("in-memory store: signals are lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("storage: unknown db driver %q", cfg.DB.Driver)
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	st, err := Open(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			newStore,
		),
	)
}

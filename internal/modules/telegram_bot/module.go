package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/notify"
	"trend_bot/internal/store"
)

// NewNotifier - Telegram, если заданы токен и чат, иначе лог.
func NewNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Warn("telegram is not configured, notifications go to log")
		return notify.NewStdout(log.Named("notify")), nil
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log.Named("telegram"))
	if err != nil {
		return nil, err
	}
	return tg, nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewNotifier,
		),
		// команды /active и /stats, только для настоящего бота
		fx.Invoke(
			func(lc fx.Lifecycle, n notify.Notifier, st store.Store) {
				t, ok := n.(*notify.Telegram)
				if !ok {
					return
				}
				var cancel context.CancelFunc
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						var ctx context.Context
						ctx, cancel = context.WithCancel(context.Background())
						t.Start(ctx, st)
						return nil
					},
					OnStop: func(context.Context) error {
						if cancel != nil {
							cancel()
						}
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}

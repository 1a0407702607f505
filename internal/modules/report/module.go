package report

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	analysis "trend_bot/internal/modules/analysis/service"
	"trend_bot/internal/modules/config"
	"trend_bot/internal/modules/report/service"
	"trend_bot/internal/notify"
	"trend_bot/internal/store"
)

func newReporter(st store.Store, n notify.Notifier, wl *analysis.Watchlist, log *zap.Logger) *service.Reporter {
	return service.NewReporter(st, n, wl, log.Named("report"))
}

func runLoop(lc fx.Lifecycle, cfg *config.Config, r *service.Reporter, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				report := time.NewTicker(cfg.Report.Interval)
				defer report.Stop()
				heartbeat := time.NewTicker(cfg.Report.HeartbeatInterval)
				defer heartbeat.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-report.C:
						if _, err := r.Report(ctx); err != nil {
							log.Error("report failed", zap.Error(err))
						}
					case <-heartbeat.C:
						r.Heartbeat(ctx)
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			return nil
		},
	})
}

// Module - сводка по закрытым сигналам и heartbeat в чат.
func Module() fx.Option {
	return fx.Module("report",
		fx.Provide(
			newReporter,
		),
		fx.Invoke(runLoop),
	)
}

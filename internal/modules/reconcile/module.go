package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	health "trend_bot/internal/modules/health/service"
	okx "trend_bot/internal/modules/okx/service"
	"trend_bot/internal/notify"
	"trend_bot/internal/outcome"
	"trend_bot/internal/store"
	"trend_bot/pkg/metrics"
	"trend_bot/pkg/tracing"
)

func newEngine(
	cfg *config.Config,
	client *okx.Client,
	st store.Store,
	n notify.Notifier,
	log *zap.Logger,
	rec *metrics.Recorder,
) (*outcome.Engine, error) {
	tb, err := outcome.ParseTieBreak(cfg.Reconcile.TieBreak)
	if err != nil {
		return nil, err
	}
	return outcome.NewEngine(outcome.Config{
		Window:       cfg.Reconcile.Window,
		FetchTimeout: cfg.Reconcile.FetchTimeout,
		Concurrency:  cfg.Reconcile.Concurrency,
		Leverage:     cfg.Reconcile.Leverage,
		TieBreak:     tb,
	}, client, st, n, log.Named("reconcile"), rec), nil
}

// Cycle - один проход сверки со спаном и метриками.
func Cycle(ctx context.Context, e *outcome.Engine, state *health.State, rec *metrics.Recorder, log *zap.Logger) {
	started := time.Now()
	span, ctx := tracing.StartSpan(ctx, "reconcile.cycle", nil)
	defer span.Finish()

	rep, err := e.RunCycle(ctx)
	rec.Cycle("reconcile", time.Since(started).Seconds(), time.Now().Unix())
	if err != nil {
		span.SetTag("error", true)
		log.Error("reconcile cycle failed", zap.Error(err))
		return
	}
	if state != nil {
		state.SetActive(rep.Active)
	}
	span.SetTag("resolved", rep.Resolved)
	log.Info("reconcile cycle done",
		zap.Int("active", rep.Active),
		zap.Int("checked", rep.Checked),
		zap.Int("resolved", rep.Resolved),
		zap.Int("fetch_failed", rep.FetchFailed),
		zap.Int("store_failed", rep.StoreFailed),
	)
}

func runLoop(lc fx.Lifecycle, cfg *config.Config, e *outcome.Engine, state *health.State, rec *metrics.Recorder, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	log = log.Named("reconcile")

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				t := time.NewTicker(cfg.Reconcile.Interval)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						Cycle(ctx, e, state, rec, log)
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
			// дождаться уведомлений о закрытиях
			e.Wait()
			return nil
		},
	})
}

// Module - периодическая сверка ACTIVE сигналов с ценой.
func Module() fx.Option {
	return fx.Module("reconcile",
		fx.Provide(
			newEngine,
		),
		fx.Invoke(runLoop),
	)
}

package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/analysis/service"
	"trend_bot/internal/modules/config"
	health "trend_bot/internal/modules/health/service"
	okx "trend_bot/internal/modules/okx/service"
	"trend_bot/internal/notify"
	"trend_bot/internal/store"
	"trend_bot/internal/strategy"
	"trend_bot/pkg/metrics"
)

func newWatchlist(cfg *config.Config, client *okx.Client, log *zap.Logger) *service.Watchlist {
	return service.NewWatchlist(cfg.Watchlist.Static, cfg.Watchlist.TopN, cfg.Watchlist.Refresh, client, log.Named("watchlist"))
}

func newAnalyzer(
	cfg *config.Config,
	client *okx.Client,
	clf *strategy.Classifier,
	st store.Store,
	n notify.Notifier,
	wl *service.Watchlist,
	log *zap.Logger,
	rec *metrics.Recorder,
) *service.Analyzer {
	return service.NewAnalyzer(service.Config{
		Timeframe:    cfg.Market.Timeframe,
		Candles:      cfg.Analysis.Candles,
		Concurrency:  cfg.Analysis.Concurrency,
		FetchTimeout: cfg.Reconcile.FetchTimeout,
	}, client, clf, st, n, wl, log.Named("analysis"), rec)
}

type loopParams struct {
	fx.In

	LC       fx.Lifecycle
	Cfg      *config.Config
	Analyzer *service.Analyzer
	Client   *okx.Client
	Notifier notify.Notifier
	State    *health.State
	Log      *zap.Logger
}

func runLoop(p loopParams) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	log := p.Log.Named("analysis")

	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			wg.Add(1)
			go func() {
				defer wg.Done()
				loop(ctx, p, log)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			p.Analyzer.Wait()
			return nil
		},
	})
}

func loop(ctx context.Context, p loopParams, log *zap.Logger) {
	first := true
	cycle := func() {
		rep := p.Analyzer.RunCycle(ctx)
		if rep.Symbols > 0 && rep.Failed < rep.Symbols {
			p.State.SetReady(true)
		}
		if first {
			first = false
			p.Notifier.Startup(ctx, rep.Symbols, p.Cfg.Market.Timeframe)
		}
	}

	cycle()

	if p.Cfg.Analysis.AlignToBarClose {
		log.Info("analysis aligned to bar close", zap.String("clock_symbol", p.Cfg.Analysis.ClockSymbol))
		bars := p.Client.StreamClosedCandles(ctx, []string{p.Cfg.Analysis.ClockSymbol}, p.Cfg.Market.Timeframe)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-bars:
				if !ok {
					return
				}
				cycle()
			}
		}
	}

	t := time.NewTicker(p.Cfg.Analysis.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("analysis loop stopped")
			return
		case <-t.C:
			cycle()
		}
	}
}

// Module - периодический анализ watchlist и запись новых сигналов.
func Module() fx.Option {
	return fx.Module("analysis",
		fx.Provide(
			newWatchlist,
			newAnalyzer,
		),
		fx.Invoke(runLoop),
	)
}

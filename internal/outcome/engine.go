package outcome

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
	"trend_bot/pkg/batch"
	"trend_bot/pkg/metrics"
)

type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

type Notifier interface {
	SignalResolved(ctx context.Context, sig models.Signal)
}

type Config struct {
	// Window - сколько последних свечей смотреть на цикл.
	Window       int
	FetchTimeout time.Duration
	Concurrency  int
	Leverage     float64
	TieBreak     TieBreak
}

// Update - закрытие, которое нужно записать по сигналу.
type Update struct {
	Signal     models.Signal
	Resolution models.Resolution
}

type CycleReport struct {
	Active      int
	Checked     int
	Resolved    int
	FetchFailed int
	StoreFailed int
}

type Engine struct {
	cfg      Config
	src      CandleSource
	store    store.Store
	notifier Notifier
	log      *zap.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	wg sync.WaitGroup
}

func NewEngine(cfg Config, src CandleSource, st store.Store, n Notifier, log *zap.Logger, rec *metrics.Recorder) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = 15
	}
	if cfg.TieBreak == "" {
		cfg.TieBreak = SLFirst
	}
	return &Engine{
		cfg:      cfg,
		src:      src,
		store:    st,
		notifier: n,
		log:      log,
		metrics:  rec,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile - scatter/gather: окна для всех сигналов качаются параллельно,
// решение по каждому сигналу зависит только от его окна. Ничего не пишет.
func (e *Engine) Reconcile(ctx context.Context, active []models.Signal) []Update {
	updates, _ := e.reconcile(ctx, active)
	return updates
}

func (e *Engine) reconcile(ctx context.Context, active []models.Signal) (updates []Update, failed int) {
	tradable := make([]models.Signal, 0, len(active))
	for _, s := range active {
		if s.Status == models.StatusActive && s.Tradable() {
			tradable = append(tradable, s)
		}
	}

	windows := batch.Gather(ctx, tradable, batch.Options{
		Limit:   e.cfg.Concurrency,
		Timeout: e.cfg.FetchTimeout,
	}, func(ctx context.Context, s models.Signal) ([]models.Candle, error) {
		candles, err := e.src.GetCandles(ctx, s.Symbol, s.Timeframe, e.cfg.Window)
		if err != nil {
			return nil, err
		}
		return AfterSignalBar(candles, s.KlineOpenTime), nil
	})

	now := e.now()
	updates = make([]Update, 0)
	for i, w := range windows {
		sig := tradable[i]
		if w.Err != nil {
			failed++
			e.metrics.Error("fetch")
			e.log.Warn("forward window fetch failed, retry next cycle",
				zap.Int64("signal_id", sig.ID), zap.String("symbol", sig.Symbol), zap.Error(w.Err))
			continue
		}

		hit, ok := Resolve(sig, w.Value, e.cfg.TieBreak)
		if !ok {
			continue
		}
		updates = append(updates, Update{Signal: sig, Resolution: e.resolution(sig, hit, now)})
	}
	return updates, failed
}

func (e *Engine) resolution(sig models.Signal, hit Hit, at time.Time) models.Resolution {
	res := models.Resolution{Status: hit.Status, ExitPrice: hit.ExitPrice, OutcomeAt: at}
	pct, lev, err := ComputePnL(sig.Trend.Direction(), sig.Levels.Entry, hit.ExitPrice, e.cfg.Leverage)
	if err != nil {
		e.log.Warn("pnl skipped", zap.Int64("signal_id", sig.ID), zap.String("symbol", sig.Symbol), zap.Error(err))
		return res
	}
	res.PnLPercentage, res.PnLWithLeverage = &pct, &lev
	return res
}

// RunCycle - один проход: ACTIVE сигналы с уровнями из стора, окна,
// запись закрытий по одной на id.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	var rep CycleReport
	active, err := e.store.QueryTradable(ctx, "")
	if err != nil {
		e.metrics.Error("store_read")
		return rep, err
	}
	rep.Active = len(active)
	e.metrics.Active(len(active))

	for _, s := range active {
		if s.Status == models.StatusActive && s.Tradable() {
			rep.Checked++
		}
	}

	updates, failed := e.reconcile(ctx, active)
	rep.FetchFailed = failed

	// запись не должна прерываться отменой цикла на полпути
	writeCtx := context.WithoutCancel(ctx)
	for _, u := range updates {
		err := e.store.Update(writeCtx, u.Signal.ID, u.Resolution)
		switch {
		case errors.Is(err, store.ErrAlreadyResolved):
			e.log.Info("signal already resolved, skip", zap.Int64("signal_id", u.Signal.ID))
			continue
		case err != nil:
			rep.StoreFailed++
			e.metrics.Error("store_write")
			e.log.Error("store update failed",
				zap.Int64("signal_id", u.Signal.ID), zap.String("symbol", u.Signal.Symbol), zap.Error(err))
			continue
		}

		rep.Resolved++
		e.metrics.Resolved(string(u.Resolution.Status))
		resolved := u.Signal
		resolved.Apply(u.Resolution)
		e.log.Info("signal resolved",
			zap.Int64("signal_id", resolved.ID),
			zap.String("symbol", resolved.Symbol),
			zap.String("status", string(resolved.Status)),
			zap.Float64("exit_price", u.Resolution.ExitPrice),
		)
		e.notify(writeCtx, resolved)
	}
	return rep, nil
}

func (e *Engine) notify(ctx context.Context, sig models.Signal) {
	if e.notifier == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				e.log.Error("notifier panic", zap.Any("panic", p))
			}
		}()
		e.notifier.SignalResolved(ctx, sig)
	}()
}

// Wait ждёт отправки уведомлений, запущенных циклами.
func (e *Engine) Wait() { e.wg.Wait() }

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
	okx "trend_bot/internal/modules/okx/service"
	"trend_bot/internal/store"
	"trend_bot/internal/strategy"
	"trend_bot/pkg/batch"
	"trend_bot/pkg/metrics"
	"trend_bot/pkg/tracing"
)

type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
}

type Notifier interface {
	SignalsCreated(ctx context.Context, signals []models.Signal)
}

type Config struct {
	Timeframe    string
	Candles      int
	Concurrency  int
	FetchTimeout time.Duration
}

type CycleReport struct {
	Symbols    int
	Created    int
	Suppressed int
	Duplicates int
	Failed     int
}

// outcome одного символа за цикл
type symbolResult struct {
	signal     *models.Signal
	suppressed strategy.SuppressReason
	duplicate  bool
}

var errStore = errors.New("store")

// Analyzer - цикл анализа: свечи -> индикаторы -> тренд -> сигнал в стор.
type Analyzer struct {
	cfg      Config
	src      CandleSource
	clf      *strategy.Classifier
	store    store.Store
	notifier Notifier
	wl       *Watchlist
	log      *zap.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	wg sync.WaitGroup
}

func NewAnalyzer(
	cfg Config,
	src CandleSource,
	clf *strategy.Classifier,
	st store.Store,
	n Notifier,
	wl *Watchlist,
	log *zap.Logger,
	rec *metrics.Recorder,
) *Analyzer {
	if cfg.Candles <= 0 {
		cfg.Candles = 500
	}
	// меньше warmup нет смысла качать: всё уйдёт в insufficient_data
	if w := clf.Params().Warmup(); cfg.Candles < w {
		cfg.Candles = w
	}
	return &Analyzer{
		cfg:      cfg,
		src:      src,
		clf:      clf,
		store:    st,
		notifier: n,
		wl:       wl,
		log:      log,
		metrics:  rec,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle - один проход по watchlist. Ошибка одного символа не мешает остальным.
func (a *Analyzer) RunCycle(ctx context.Context) CycleReport {
	started := time.Now()
	symbols := a.wl.Symbols(ctx)
	span, ctx := tracing.StartSpan(ctx, "analysis.cycle", map[string]any{
		"symbols":   len(symbols),
		"timeframe": a.cfg.Timeframe,
	})
	defer span.Finish()

	rep := CycleReport{Symbols: len(symbols)}
	results := batch.Gather(ctx, symbols, batch.Options{
		Limit:   a.cfg.Concurrency,
		Timeout: a.cfg.FetchTimeout,
	}, a.analyzeSymbol)

	created := make([]models.Signal, 0)
	for i, r := range results {
		sym := symbols[i]
		switch {
		case r.Err != nil:
			rep.Failed++
			kind := "fetch"
			if errors.Is(r.Err, errStore) {
				kind = "store_write"
			}
			a.metrics.Error(kind)
			a.log.Warn("symbol analysis failed", zap.String("symbol", sym), zap.Error(r.Err))
		case r.Value.suppressed != "":
			rep.Suppressed++
			a.metrics.Suppressed(string(r.Value.suppressed))
			a.log.Debug("signal suppressed", zap.String("symbol", sym), zap.String("reason", string(r.Value.suppressed)))
		case r.Value.duplicate:
			rep.Duplicates++
		case r.Value.signal != nil:
			rep.Created++
			created = append(created, *r.Value.signal)
		}
	}

	// в чат - только сигналы с уровнями
	tradable := make([]models.Signal, 0, len(created))
	for _, s := range created {
		if s.Tradable() {
			tradable = append(tradable, s)
		}
	}
	if len(tradable) > 0 {
		a.notify(context.WithoutCancel(ctx), tradable)
	}

	a.metrics.Cycle("analysis", time.Since(started).Seconds(), a.now().Unix())
	span.SetTag("created", rep.Created)
	span.SetTag("failed", rep.Failed)
	a.log.Info("analysis cycle done",
		zap.Int("symbols", rep.Symbols),
		zap.Int("created", rep.Created),
		zap.Int("suppressed", rep.Suppressed),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("failed", rep.Failed),
	)
	return rep
}

// notify отправляет пачку в фоне: медленный чат не держит цикл анализа.
func (a *Analyzer) notify(ctx context.Context, signals []models.Signal) {
	if a.notifier == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				a.log.Error("notifier panic", zap.Any("panic", p))
			}
		}()
		a.notifier.SignalsCreated(ctx, signals)
	}()
}

// Wait ждёт уведомлений, запущенных циклами.
func (a *Analyzer) Wait() { a.wg.Wait() }

func (a *Analyzer) analyzeSymbol(ctx context.Context, sym string) (symbolResult, error) {
	candles, err := a.src.GetCandles(ctx, sym, a.cfg.Timeframe, a.cfg.Candles)
	if err != nil {
		return symbolResult{}, err
	}
	candles = okx.ClosedOnly(candles)

	frames, err := indicator.Compute(candles, a.clf.Params())
	if err != nil {
		return symbolResult{}, fmt.Errorf("compute %s: %w", sym, err)
	}

	dec := a.clf.Classify(frames)
	if dec.Suppressed {
		return symbolResult{suppressed: dec.Reason}, nil
	}

	active, err := a.store.QueryActive(ctx, sym)
	if err != nil {
		return symbolResult{}, fmt.Errorf("%w: query active %s: %v", errStore, sym, err)
	}
	for _, s := range active {
		if s.Trend == dec.Result.Trend {
			return symbolResult{duplicate: true}, nil
		}
	}

	sig, err := a.clf.BuildSignal(sym, a.cfg.Timeframe, a.now(), dec.Result)
	if err != nil {
		return symbolResult{}, fmt.Errorf("build signal %s: %w", sym, err)
	}

	// запись доводим до конца даже при отмене цикла
	id, err := a.store.Insert(context.WithoutCancel(ctx), sig)
	if err != nil {
		return symbolResult{}, fmt.Errorf("%w: insert %s: %v", errStore, sym, err)
	}
	sig.ID = id
	a.metrics.SignalCreated(string(sig.Trend))
	a.log.Info("signal created",
		zap.Int64("signal_id", id),
		zap.String("symbol", sym),
		zap.String("trend", string(sig.Trend)),
		zap.Float64("price", sig.LastPrice),
	)
	return symbolResult{signal: sig}, nil
}

// Package backfill генерирует исторические сигналы и сразу закрывает их
// симуляцией на нескольких следующих барах.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
	"trend_bot/internal/store"
	"trend_bot/internal/strategy"
)

type LevelsMode string

const (
	// уровни от ATR, как в живом анализе
	LevelsATR LevelsMode = "atr"
	// фиксированные проценты от входа
	LevelsPercent LevelsMode = "percent"
)

// PercentBrackets - доли от цены входа.
type PercentBrackets struct {
	SL, TP1, TP2, TP3 float64
}

func DefaultPercentBrackets() PercentBrackets {
	return PercentBrackets{SL: 0.025, TP1: 0.028, TP2: 0.036, TP3: 0.049}
}

func (p PercentBrackets) Levels(dir models.Direction, entry float64) (*models.Brackets, error) {
	if !(p.SL > 0 && p.TP1 > 0 && p.TP1 < p.TP2 && p.TP2 < p.TP3) {
		return nil, fmt.Errorf("backfill: bad percent brackets %+v", p)
	}
	sign := 1.0
	switch dir {
	case models.DirectionLong:
	case models.DirectionShort:
		sign = -1
	default:
		return nil, fmt.Errorf("backfill: no direction for levels")
	}
	return &models.Brackets{
		Entry:    entry,
		StopLoss: entry * (1 - sign*p.SL),
		TP1:      entry * (1 + sign*p.TP1),
		TP2:      entry * (1 + sign*p.TP2),
		TP3:      entry * (1 + sign*p.TP3),
	}, nil
}

type Options struct {
	Symbol    string
	Timeframe string
	Mode      LevelsMode
	Percent   PercentBrackets
	Sim       outcome.SimConfig
	// MaxTrades - не больше стольких сигналов на символ; 0 - без ограничения.
	MaxTrades int
	// DryRun - ничего не писать в стор.
	DryRun bool
}

type Result struct {
	Signals []models.Signal
	Skipped int
}

// Run проходит по закрытым свечам и на каждом подходящем баре создаёт сигнал,
// закрывая его симуляцией по следующим Sim.Horizon барам.
func Run(ctx context.Context, candles []models.Candle, clf *strategy.Classifier, st store.Store, opts Options, log *zap.Logger) (Result, error) {
	var res Result
	frames, err := indicator.Compute(candles, clf.Params())
	if err != nil {
		return res, err
	}
	horizon := opts.Sim.Horizon
	if horizon <= 0 {
		horizon = outcome.DefaultHorizon
	}

	for i := 0; i+horizon < len(frames); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.MaxTrades > 0 && len(res.Signals) >= opts.MaxTrades {
			break
		}

		sig, err := signalAt(clf, frames[:i+1], opts)
		if err != nil {
			return res, err
		}
		if sig == nil {
			continue
		}

		r, err := outcome.Simulate(*sig, candles[i+1:i+1+horizon], opts.Sim)
		if err != nil {
			res.Skipped++
			log.Warn("simulate skipped", zap.Time("bar", frames[i].OpenTime), zap.Error(err))
			continue
		}

		// исторический сигнал пишется сразу закрытым: живая сверка не должна его увидеть
		if !opts.DryRun {
			if _, err := st.InsertResolved(ctx, sig, r); err != nil {
				return res, fmt.Errorf("backfill: insert %s at %s: %w", sig.Symbol, sig.CreatedAt.Format(time.DateTime), err)
			}
		}
		sig.Apply(r)
		res.Signals = append(res.Signals, *sig)
	}
	return res, nil
}

func signalAt(clf *strategy.Classifier, frames []models.Frame, opts Options) (*models.Signal, error) {
	dec := clf.Classify(frames)
	if dec.Suppressed || !dec.Result.Trend.Strong() {
		return nil, nil
	}
	cl := *dec.Result
	if opts.Mode == LevelsPercent {
		lv, err := opts.Percent.Levels(cl.Trend.Direction(), cl.Frame.Close)
		if err != nil {
			return nil, err
		}
		cl.Levels = lv
	}
	// время создания - закрытие бара
	created := cl.Frame.OpenTime.Add(timeframeStep(frames))
	return clf.BuildSignal(opts.Symbol, opts.Timeframe, created, &cl)
}

func timeframeStep(frames []models.Frame) time.Duration {
	if n := len(frames); n >= 2 {
		return frames[n-1].OpenTime.Sub(frames[n-2].OpenTime)
	}
	return 0
}

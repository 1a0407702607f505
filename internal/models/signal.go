package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrUnexpectedLevels = errors.New("levels are only allowed for strong trends")
	ErrMissingLevels    = errors.New("strong trend requires levels")
	ErrLevelsOrder      = errors.New("levels are not monotonic")
)

// Brackets - вход и уровни. Либо все заданы, либо Signal.Levels == nil.
type Brackets struct {
	Entry    float64 `json:"entry"`
	StopLoss float64 `json:"stop_loss"`
	TP1      float64 `json:"tp1"`
	TP2      float64 `json:"tp2"`
	TP3      float64 `json:"tp3"`
}

// Check проверяет порядок уровней для направления:
// лонг SL < entry < tp1 < tp2 < tp3, шорт tp3 < tp2 < tp1 < entry < SL.
func (b Brackets) Check(dir Direction) error {
	for _, v := range []float64{b.Entry, b.StopLoss, b.TP1, b.TP2, b.TP3} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: non-positive level in %+v", ErrLevelsOrder, b)
		}
	}
	var ok bool
	switch dir {
	case DirectionLong:
		ok = b.StopLoss < b.Entry && b.Entry < b.TP1 && b.TP1 < b.TP2 && b.TP2 < b.TP3
	case DirectionShort:
		ok = b.TP3 < b.TP2 && b.TP2 < b.TP1 && b.TP1 < b.Entry && b.Entry < b.StopLoss
	}
	if !ok {
		return fmt.Errorf("%w: %s %+v", ErrLevelsOrder, dir, b)
	}
	return nil
}

// IndicatorSnapshot - значения индикаторов на баре сигнала вместе с периодами.
type IndicatorSnapshot struct {
	EMAFast   float64 `json:"ema_fast"`
	EMAMedium float64 `json:"ema_medium"`
	EMASlow   float64 `json:"ema_slow"`
	RSI       float64 `json:"rsi"`
	BBLower   float64 `json:"bb_lower"`
	BBMiddle  float64 `json:"bb_middle"`
	BBUpper   float64 `json:"bb_upper"`
	ATR       float64 `json:"atr"`
	Volume    float64 `json:"volume"`
	VolumeSMA float64 `json:"volume_sma"`

	FastPeriod   int `json:"fast_period"`
	MediumPeriod int `json:"medium_period"`
	SlowPeriod   int `json:"slow_period"`
	RSIPeriod    int `json:"rsi_period"`
	ATRPeriod    int `json:"atr_period"`
}

type Signal struct {
	ID            int64
	Symbol        string
	Timeframe     string
	CreatedAt     time.Time
	KlineOpenTime time.Time
	LastPrice     float64
	Indicators    IndicatorSnapshot
	Trend         Trend
	Levels        *Brackets
	Status        Status

	ExitPrice       *float64
	OutcomeAt       *time.Time
	PnLPercentage   *float64
	PnLWithLeverage *float64
}

// NewSignal - единственный способ собрать новый ACTIVE сигнал.
func NewSignal(
	symbol, timeframe string,
	createdAt, klineOpen time.Time,
	lastPrice float64,
	snap IndicatorSnapshot,
	trend Trend,
	levels *Brackets,
) (*Signal, error) {
	if symbol == "" {
		return nil, errors.New("models.NewSignal: empty symbol")
	}
	if !trend.Valid() {
		return nil, fmt.Errorf("models.NewSignal: unknown trend %q", trend)
	}
	switch {
	case trend.Strong() && levels == nil:
		return nil, fmt.Errorf("models.NewSignal: %w (%s)", ErrMissingLevels, trend)
	case !trend.Strong() && levels != nil:
		return nil, fmt.Errorf("models.NewSignal: %w (%s)", ErrUnexpectedLevels, trend)
	case levels != nil:
		if err := levels.Check(trend.Direction()); err != nil {
			return nil, fmt.Errorf("models.NewSignal: %w", err)
		}
		lv := *levels
		levels = &lv
	}

	return &Signal{
		Symbol:        symbol,
		Timeframe:     timeframe,
		CreatedAt:     createdAt.UTC(),
		KlineOpenTime: klineOpen.UTC(),
		LastPrice:     lastPrice,
		Indicators:    snap,
		Trend:         trend,
		Levels:        levels,
		Status:        StatusActive,
	}, nil
}

// Tradable - есть уровни, которые можно проверять.
func (s Signal) Tradable() bool { return s.Levels != nil }

// Resolution - единственное обновление сигнала при закрытии.
type Resolution struct {
	Status          Status
	ExitPrice       float64
	OutcomeAt       time.Time
	PnLPercentage   *float64
	PnLWithLeverage *float64
}

func (r Resolution) Validate() error {
	if !r.Status.Terminal() {
		return fmt.Errorf("resolution status %q is not terminal", r.Status)
	}
	if r.OutcomeAt.IsZero() {
		return errors.New("resolution without outcome time")
	}
	return nil
}

// Apply переносит поля закрытия в сигнал.
func (s *Signal) Apply(r Resolution) {
	exit := r.ExitPrice
	at := r.OutcomeAt.UTC()
	s.Status = r.Status
	s.ExitPrice = &exit
	s.OutcomeAt = &at
	s.PnLPercentage = r.PnLPercentage
	s.PnLWithLeverage = r.PnLWithLeverage
}

package strategy

import (
	"fmt"
	"time"

	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
)

type SuppressReason string

const (
	ReasonInsufficientData SuppressReason = "insufficient_data"
	ReasonInvalidFrame     SuppressReason = "invalid_frame"
	ReasonLowVolatility    SuppressReason = "low_volatility"
	ReasonLowVolume        SuppressReason = "low_volume"
)

type Config struct {
	Indicators    indicator.Params
	Multipliers   Multipliers
	MinATRPercent float64
	VolumeRatio   float64
}

// Classification - результат по последнему бару серии.
type Classification struct {
	Frame    models.Frame
	Trend    models.Trend
	Levels   *models.Brackets
	Snapshot models.IndicatorSnapshot
}

type Decision struct {
	Result     *Classification
	Suppressed bool
	Reason     SuppressReason
}

func suppressed(r SuppressReason) Decision {
	return Decision{Suppressed: true, Reason: r}
}

type Classifier struct {
	cfg     Config
	filters Chain
}

func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Indicators.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.NewClassifier: %w", err)
	}
	if err := cfg.Multipliers.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.NewClassifier: %w", err)
	}
	if cfg.MinATRPercent < 0 {
		return nil, fmt.Errorf("strategy.NewClassifier: negative min atr percent %v", cfg.MinATRPercent)
	}
	return &Classifier{
		cfg: cfg,
		filters: Chain{
			VolatilityFilter{MinATRPercent: cfg.MinATRPercent},
			VolumeFilter{Ratio: cfg.VolumeRatio},
		},
	}, nil
}

func (c *Classifier) Params() indicator.Params { return c.cfg.Indicators }

// Classify смотрит на последний кадр. Кадров должно быть не меньше периода медленной EMA.
func (c *Classifier) Classify(frames []models.Frame) Decision {
	if len(frames) < c.cfg.Indicators.SlowPeriod {
		return suppressed(ReasonInsufficientData)
	}
	f := frames[len(frames)-1]
	if !f.Complete() {
		return suppressed(ReasonInvalidFrame)
	}
	if reason := c.filters.Check(f); reason != "" {
		return suppressed(reason)
	}

	trend := DetermineTrend(f.Close, f.EMAFast, f.EMAMedium, f.EMASlow)
	levels, err := Levels(trend, f.Close, f.ATR, c.cfg.Multipliers)
	if err != nil {
		// без валидных уровней сильный тренд не торгуем
		trend, levels = models.TrendSideways, nil
	}

	return Decision{Result: &Classification{
		Frame:    f,
		Trend:    trend,
		Levels:   levels,
		Snapshot: c.cfg.Indicators.Snapshot(f),
	}}
}

func (c *Classifier) BuildSignal(symbol, timeframe string, now time.Time, cl *Classification) (*models.Signal, error) {
	return models.NewSignal(
		symbol, timeframe,
		now, cl.Frame.OpenTime,
		cl.Frame.Close,
		cl.Snapshot,
		cl.Trend,
		cl.Levels,
	)
}

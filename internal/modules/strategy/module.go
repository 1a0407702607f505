package strategy

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"trend_bot/internal/modules/config"
	"trend_bot/internal/strategy"
)

// NewClassifier собирает классификатор тренда из конфига.
func NewClassifier(cfg *config.Config, log *zap.Logger) (*strategy.Classifier, error) {
	clf, err := strategy.NewClassifier(strategy.Config{
		Indicators:    cfg.Indicators,
		Multipliers:   cfg.Levels,
		MinATRPercent: cfg.Filters.MinATRPercent,
		VolumeRatio:   cfg.Filters.VolumeRatio,
	})
	if err != nil {
		return nil, err
	}
	p := cfg.Indicators
	log.Info("classifier ready",
		zap.Int("ema_fast", p.FastPeriod),
		zap.Int("ema_medium", p.MediumPeriod),
		zap.Int("ema_slow", p.SlowPeriod),
		zap.Float64("min_atr_percent", cfg.Filters.MinATRPercent),
	)
	return clf, nil
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			NewClassifier,
		),
	)
}

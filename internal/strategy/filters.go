package strategy

import "trend_bot/internal/models"

// Filter - допуск бара до классификации. Чистая функция от кадра.
type Filter interface {
	Name() SuppressReason
	Admit(f models.Frame) bool
}

// ATRPercent - atr/close*100, 0 при close <= 0.
func ATRPercent(atr, closePrice float64) float64 {
	if closePrice <= 0 {
		return 0
	}
	return atr / closePrice * 100
}

// VolatilityFilter отсекает вялый рынок, где уровни по ATR бессмысленны.
type VolatilityFilter struct {
	MinATRPercent float64
}

func (VolatilityFilter) Name() SuppressReason { return ReasonLowVolatility }

func (v VolatilityFilter) Admit(f models.Frame) bool {
	return ATRPercent(f.ATR, f.Close) >= v.MinATRPercent
}

// VolumeFilter требует объём не ниже средней (с множителем Ratio).
type VolumeFilter struct {
	Ratio float64
}

func (VolumeFilter) Name() SuppressReason { return ReasonLowVolume }

func (v VolumeFilter) Admit(f models.Frame) bool {
	ratio := v.Ratio
	if ratio <= 0 {
		ratio = 1
	}
	return f.Volume >= f.VolumeSMA*ratio
}

type Chain []Filter

// Check возвращает причину первого отказа или "" если бар допущен.
func (c Chain) Check(f models.Frame) SuppressReason {
	for _, flt := range c {
		if !flt.Admit(f) {
			return flt.Name()
		}
	}
	return ""
}

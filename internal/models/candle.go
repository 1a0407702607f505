package models

import (
	"fmt"
	"math"
	"time"
)

// Candle - одна свеча OHLCV. OpenTime - начало бара (UTC).
type Candle struct {
	InstID    string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Confirmed bool
}

// ValidateSeries проверяет, что серия идёт строго по возрастанию времени без дублей.
func ValidateSeries(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return fmt.Errorf("candles out of order at %d: %s <= %s",
				i, candles[i].OpenTime.Format(time.RFC3339), candles[i-1].OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Frame - свеча плюс рассчитанные на ней индикаторы. Неопределённые значения = NaN.
type Frame struct {
	Candle

	EMAFast   float64
	EMAMedium float64
	EMASlow   float64
	RSI       float64
	BBLower   float64
	BBMiddle  float64
	BBUpper   float64
	ATR       float64
	VolumeSMA float64
}

// Complete - все поля, нужные классификатору, посчитаны.
func (f Frame) Complete() bool {
	for _, v := range []float64{
		f.Close, f.Volume,
		f.EMAFast, f.EMAMedium, f.EMASlow,
		f.RSI, f.BBLower, f.BBMiddle, f.BBUpper,
		f.ATR, f.VolumeSMA,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// LowHigh - минимум low и максимум high по окну.
func LowHigh(window []Candle) (low, high float64) {
	low, high = math.Inf(1), math.Inf(-1)
	for _, c := range window {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	return low, high
}

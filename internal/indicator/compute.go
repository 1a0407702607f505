package indicator

import (
	"errors"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"trend_bot/internal/models"
)

type Params struct {
	FastPeriod      int     `yaml:"ema_fast"`
	MediumPeriod    int     `yaml:"ema_medium"`
	SlowPeriod      int     `yaml:"ema_slow"`
	RSIPeriod       int     `yaml:"rsi_period"`
	BBPeriod        int     `yaml:"bb_period"`
	BBStdDev        float64 `yaml:"bb_std"`
	ATRPeriod       int     `yaml:"atr_period"`
	VolumeSMAPeriod int     `yaml:"volume_sma_period"`
}

func DefaultParams() Params {
	return Params{
		FastPeriod:      34,
		MediumPeriod:    89,
		SlowPeriod:      200,
		RSIPeriod:       13,
		BBPeriod:        20,
		BBStdDev:        2,
		ATRPeriod:       14,
		VolumeSMAPeriod: 20,
	}
}

func (p Params) Validate() error {
	if p.FastPeriod <= 0 || p.MediumPeriod <= 0 || p.SlowPeriod <= 0 ||
		p.RSIPeriod <= 0 || p.BBPeriod <= 0 || p.ATRPeriod <= 0 || p.VolumeSMAPeriod <= 0 {
		return errors.New("indicator periods must be positive")
	}
	if !(p.FastPeriod < p.MediumPeriod && p.MediumPeriod < p.SlowPeriod) {
		return fmt.Errorf("ema periods must be fast < medium < slow, got %d/%d/%d",
			p.FastPeriod, p.MediumPeriod, p.SlowPeriod)
	}
	if p.BBPeriod < 2 {
		return errors.New("bb_period must be at least 2")
	}
	if p.BBStdDev <= 0 {
		return errors.New("bb_std must be positive")
	}
	return nil
}

// Warmup - сколько баров нужно, чтобы на последнем были определены все индикаторы.
func (p Params) Warmup() int {
	n := p.SlowPeriod
	for _, v := range []int{p.RSIPeriod + 1, p.BBPeriod, p.ATRPeriod + 1, p.VolumeSMAPeriod} {
		if v > n {
			n = v
		}
	}
	return n
}

// Snapshot собирает снимок индикаторов кадра вместе с периодами.
func (p Params) Snapshot(f models.Frame) models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		EMAFast:      f.EMAFast,
		EMAMedium:    f.EMAMedium,
		EMASlow:      f.EMASlow,
		RSI:          f.RSI,
		BBLower:      f.BBLower,
		BBMiddle:     f.BBMiddle,
		BBUpper:      f.BBUpper,
		ATR:          f.ATR,
		Volume:       f.Volume,
		VolumeSMA:    f.VolumeSMA,
		FastPeriod:   p.FastPeriod,
		MediumPeriod: p.MediumPeriod,
		SlowPeriod:   p.SlowPeriod,
		RSIPeriod:    p.RSIPeriod,
		ATRPeriod:    p.ATRPeriod,
	}
}

// streamEMA прогоняет серию через EMA, до готовности - NaN.
func streamEMA(xs []float64, period int) []float64 {
	e := NewEMA(period)
	out := make([]float64, len(xs))
	for i, x := range xs {
		e.Update(x)
		out[i] = math.NaN()
		if e.Ready() {
			out[i] = e.Value()
		}
	}
	return out
}

func streamRSI(xs []float64, period int) []float64 {
	r := NewRSI(period)
	out := make([]float64, len(xs))
	for i, x := range xs {
		r.Update(x)
		out[i] = math.NaN()
		if r.Ready() {
			out[i] = r.Value()
		}
	}
	return out
}

// masked - значение talib-серии или NaN до первого определённого бара.
// talib заполняет прогрев нулями, поэтому маска обязательна.
func masked(xs []float64, i, first int) float64 {
	if xs == nil || i < first {
		return math.NaN()
	}
	return xs[i]
}

// Compute считает кадры по всей серии. Кадр i зависит только от свечей 0..i.
// ATR в конвенции talib: TR первого бара не определён, первое значение ATR
// на баре ATRPeriod - среднее TR[1..ATRPeriod].
func Compute(candles []models.Candle, p Params) ([]models.Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("indicator.Compute: %w", err)
	}
	if err := models.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("indicator.Compute: %w", err)
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	vols := make([]float64, n)
	for i, c := range candles {
		closes[i], highs[i], lows[i], vols[i] = c.Close, c.High, c.Low, c.Volume
	}

	fast := streamEMA(closes, p.FastPeriod)
	medium := streamEMA(closes, p.MediumPeriod)
	slow := streamEMA(closes, p.SlowPeriod)
	rsi := streamRSI(closes, p.RSIPeriod)

	// talib не проверяет длину входа и паникует на коротких сериях
	var atr, bbUpper, bbMiddle, bbLower, volSMA []float64
	if n > p.ATRPeriod {
		atr = talib.Atr(highs, lows, closes, p.ATRPeriod)
	}
	if n >= p.BBPeriod {
		bbUpper, bbMiddle, bbLower = talib.BBands(closes, p.BBPeriod, p.BBStdDev, p.BBStdDev, talib.SMA)
	}
	if n >= p.VolumeSMAPeriod {
		volSMA = talib.Sma(vols, p.VolumeSMAPeriod)
	}

	frames := make([]models.Frame, 0, n)
	for i, c := range candles {
		frames = append(frames, models.Frame{
			Candle:    c,
			EMAFast:   fast[i],
			EMAMedium: medium[i],
			EMASlow:   slow[i],
			RSI:       rsi[i],
			BBLower:   masked(bbLower, i, p.BBPeriod-1),
			BBMiddle:  masked(bbMiddle, i, p.BBPeriod-1),
			BBUpper:   masked(bbUpper, i, p.BBPeriod-1),
			ATR:       masked(atr, i, p.ATRPeriod),
			VolumeSMA: masked(volSMA, i, p.VolumeSMAPeriod-1),
		})
	}
	return frames, nil
}

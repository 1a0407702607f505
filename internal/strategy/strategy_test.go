package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_bot/internal/indicator"
	"trend_bot/internal/models"
)

func testConfig() Config {
	return Config{
		Indicators: indicator.Params{
			FastPeriod:      3,
			MediumPeriod:    5,
			SlowPeriod:      8,
			RSIPeriod:       3,
			BBPeriod:        4,
			BBStdDev:        2,
			ATRPeriod:       3,
			VolumeSMAPeriod: 4,
		},
		Multipliers:   DefaultMultipliers(),
		MinATRPercent: 0.5,
		VolumeRatio:   1,
	}
}

// frame строит кадр с заданной ценой/EMA и atrPercent.
func frame(price, fast, medium, slow, atrPct, volume, volumeSMA float64) models.Frame {
	return models.Frame{
		Candle:    models.Candle{OpenTime: time.Unix(1_700_000_000, 0), Close: price, High: price, Low: price, Volume: volume},
		EMAFast:   fast,
		EMAMedium: medium,
		EMASlow:   slow,
		RSI:       60,
		BBLower:   price * 0.98,
		BBMiddle:  price,
		BBUpper:   price * 1.02,
		ATR:       atrPct * price / 100,
		VolumeSMA: volumeSMA,
	}
}

func series(n int, last models.Frame) []models.Frame {
	out := make([]models.Frame, n)
	out[n-1] = last
	return out
}

func TestDetermineTrend(t *testing.T) {
	cases := []struct {
		price, fast, medium, slow float64
		want                      models.Trend
	}{
		{110, 105, 100, 95, models.TrendStrongBullish},
		{90, 95, 100, 105, models.TrendStrongBearish},
		{110, 112, 100, 95, models.TrendBullish},
		{110, 105, 95, 100, models.TrendBullish},
		{90, 85, 100, 105, models.TrendBearish},
		{100, 101, 99, 102, models.TrendSideways},
		{100, 100, 100, 100, models.TrendSideways},
		{math.NaN(), 1, 2, 3, models.TrendSideways},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetermineTrend(tc.price, tc.fast, tc.medium, tc.slow),
			"%v/%v/%v/%v", tc.price, tc.fast, tc.medium, tc.slow)
	}
}

func TestDetermineTrend_TotalAndExclusive(t *testing.T) {
	vals := []float64{90, 95, 100, 105, 110}
	for _, p := range vals {
		for _, f := range vals {
			for _, m := range vals {
				for _, s := range vals {
					got := DetermineTrend(p, f, m, s)
					require.True(t, got.Valid())

					strongBull := p > f && f > m && m > s
					strongBear := p < f && f < m && m < s
					bull := !strongBull && p > s && p > m
					bear := !strongBear && p < s && p < m
					var want models.Trend
					switch {
					case strongBull:
						want = models.TrendStrongBullish
					case strongBear:
						want = models.TrendStrongBearish
					case bull:
						want = models.TrendBullish
					case bear:
						want = models.TrendBearish
					default:
						want = models.TrendSideways
					}
					require.Equal(t, want, got)
				}
			}
		}
	}
}

func TestLevels_Monotonic(t *testing.T) {
	m := DefaultMultipliers()

	long, err := Levels(models.TrendStrongBullish, 110, 1.32, m)
	require.NoError(t, err)
	assert.Less(t, long.StopLoss, long.Entry)
	assert.Less(t, long.Entry, long.TP1)
	assert.Less(t, long.TP1, long.TP2)
	assert.Less(t, long.TP2, long.TP3)
	assert.InDelta(t, 110-1.2*1.32, long.StopLoss, 1e-9)
	assert.InDelta(t, 110+3.2*1.32, long.TP3, 1e-9)

	short, err := Levels(models.TrendStrongBearish, 110, 1.32, m)
	require.NoError(t, err)
	assert.Less(t, short.TP3, short.TP2)
	assert.Less(t, short.TP2, short.TP1)
	assert.Less(t, short.TP1, short.Entry)
	assert.Less(t, short.Entry, short.StopLoss)

	none, err := Levels(models.TrendBullish, 110, 1.32, m)
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, err = Levels(models.TrendStrongBullish, 110, 0, m)
	assert.ErrorIs(t, err, ErrNoVolatility)
}

func TestMultipliersValidate(t *testing.T) {
	assert.NoError(t, DefaultMultipliers().Validate())
	assert.Error(t, Multipliers{SL: 1, TP1: 2, TP2: 2, TP3: 3}.Validate())
	assert.Error(t, Multipliers{SL: 0, TP1: 1, TP2: 2, TP3: 3}.Validate())
}

func TestFilters_Idempotent(t *testing.T) {
	f := frame(110, 105, 100, 95, 0.7, 1200, 1000)
	chain := Chain{VolatilityFilter{MinATRPercent: 0.5}, VolumeFilter{Ratio: 1}}
	first := chain.Check(f)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, chain.Check(f))
	}
	assert.Equal(t, SuppressReason(""), first)
}

func TestATRPercent(t *testing.T) {
	assert.InDelta(t, 1.2, ATRPercent(1.32, 110), 1e-12)
	assert.Equal(t, 0.0, ATRPercent(5, 0))
	assert.Equal(t, 0.0, ATRPercent(5, -1))
}

func TestClassify_StrongBullish(t *testing.T) {
	c, err := NewClassifier(testConfig())
	require.NoError(t, err)

	d := c.Classify(series(10, frame(110, 105, 100, 95, 1.2, 1500, 1000)))
	require.False(t, d.Suppressed)
	require.NotNil(t, d.Result)
	assert.Equal(t, models.TrendStrongBullish, d.Result.Trend)
	require.NotNil(t, d.Result.Levels)
	lv := d.Result.Levels
	assert.Equal(t, 110.0, lv.Entry)
	assert.Less(t, lv.StopLoss, 110.0)
	assert.True(t, 110 < lv.TP1 && lv.TP1 < lv.TP2 && lv.TP2 < lv.TP3)

	sig, err := c.BuildSignal("BTC-USDT-SWAP", "15m", time.Now(), d.Result)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, sig.Status)
	assert.Equal(t, 3, sig.Indicators.FastPeriod)
}

func TestClassify_Suppression(t *testing.T) {
	c, err := NewClassifier(testConfig())
	require.NoError(t, err)

	cases := []struct {
		name   string
		frames []models.Frame
		reason SuppressReason
	}{
		{"low volatility", series(10, frame(110, 105, 100, 95, 0.2, 1500, 1000)), ReasonLowVolatility},
		{"low volume", series(10, frame(110, 105, 100, 95, 1.2, 900, 1000)), ReasonLowVolume},
		{"too few bars", series(7, frame(110, 105, 100, 95, 1.2, 1500, 1000)), ReasonInsufficientData},
		{"nan slow ema", series(10, frame(110, 105, 100, math.NaN(), 1.2, 1500, 1000)), ReasonInvalidFrame},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Classify(tc.frames)
			assert.True(t, d.Suppressed)
			assert.Nil(t, d.Result)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestClassify_InformationalTrendsCarryNoLevels(t *testing.T) {
	c, err := NewClassifier(testConfig())
	require.NoError(t, err)

	d := c.Classify(series(10, frame(110, 112, 100, 95, 1.2, 1500, 1000)))
	require.False(t, d.Suppressed)
	assert.Equal(t, models.TrendBullish, d.Result.Trend)
	assert.Nil(t, d.Result.Levels)
}

func TestClassify_ZeroATRDowngradesToSideways(t *testing.T) {
	cfg := testConfig()
	cfg.MinATRPercent = 0
	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	d := c.Classify(series(10, frame(110, 105, 100, 95, 0, 1500, 1000)))
	require.False(t, d.Suppressed)
	assert.Equal(t, models.TrendSideways, d.Result.Trend)
	assert.Nil(t, d.Result.Levels)
}

func TestClassify_EndToEndFromCandles(t *testing.T) {
	cfg := testConfig()
	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	// ровный рост с увеличивающимся объёмом -> сильный бычий тренд
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 40; i++ {
		p := 100 * math.Pow(1.01, float64(i))
		candles = append(candles, models.Candle{
			OpenTime: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:     p * 0.995, High: p * 1.005, Low: p * 0.99, Close: p,
			Volume: 1000 + 50*float64(i),
		})
	}
	frames, err := indicator.Compute(candles, cfg.Indicators)
	require.NoError(t, err)

	d := c.Classify(frames)
	require.False(t, d.Suppressed, d.Reason)
	assert.Equal(t, models.TrendStrongBullish, d.Result.Trend)
	assert.Equal(t, candles[39].Close, d.Result.Levels.Entry)
}

package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_bot/internal/models"
)

const relTol = 1e-6

func assertRel(t *testing.T, label string, got, want float64) {
	t.Helper()
	diff := math.Abs(got - want)
	scale := math.Max(1, math.Abs(want))
	if diff/scale > relTol {
		t.Errorf("%s: got %.10f, want %.10f (diff=%.3g)", label, got, want, diff)
	}
}

// synthetic - детерминированная серия с трендом и колебаниями.
func synthetic(n int) []models.Candle {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		mid := 100 + 0.15*x + 4*math.Sin(x/7) + 1.5*math.Cos(x/3)
		out[i] = models.Candle{
			OpenTime: t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:     mid - 0.3*math.Sin(x),
			High:     mid + 1 + 0.5*math.Abs(math.Sin(x/2)),
			Low:      mid - 1 - 0.5*math.Abs(math.Cos(x/5)),
			Close:    mid + 0.3*math.Sin(x),
			Volume:   1000 + 200*math.Sin(x/4) + 10*x,
		}
	}
	return out
}

func closes(c []models.Candle) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = c[i].Close
	}
	return out
}

// refEMA - явная формула: (1-a)^(i-p+1)*seed + Σ a(1-a)^(i-j) x_j.
func refEMA(xs []float64, p, i int) float64 {
	if i < p-1 {
		return math.NaN()
	}
	var seed float64
	for j := 0; j < p; j++ {
		seed += xs[j]
	}
	seed /= float64(p)
	a := 2.0 / float64(p+1)
	v := math.Pow(1-a, float64(i-p+1)) * seed
	for j := p; j <= i; j++ {
		v += a * math.Pow(1-a, float64(i-j)) * xs[j]
	}
	return v
}

func refRSI(xs []float64, p, i int) float64 {
	if i < p {
		return math.NaN()
	}
	var g, l float64
	for j := 1; j <= p; j++ {
		d := xs[j] - xs[j-1]
		g += math.Max(d, 0)
		l += math.Max(-d, 0)
	}
	g /= float64(p)
	l /= float64(p)
	for j := p + 1; j <= i; j++ {
		d := xs[j] - xs[j-1]
		g = (g*float64(p-1) + math.Max(d, 0)) / float64(p)
		l = (l*float64(p-1) + math.Max(-d, 0)) / float64(p)
	}
	if l == 0 {
		return 100
	}
	return 100 - 100/(1+g/l)
}

func refBands(xs []float64, p int, k float64, i int) (float64, float64, float64) {
	w := xs[i-p+1 : i+1]
	var mean float64
	for _, v := range w {
		mean += v
	}
	mean /= float64(p)
	var ss float64
	for _, v := range w {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / float64(p))
	return mean - k*sd, mean, mean + k*sd
}

// refATR - TR первого бара не участвует, seed = среднее TR[1..p], дальше RMA.
func refATR(c []models.Candle, p, i int) float64 {
	tr := func(j int) float64 {
		v := c[j].High - c[j].Low
		v = math.Max(v, math.Abs(c[j].High-c[j-1].Close))
		return math.Max(v, math.Abs(c[j].Low-c[j-1].Close))
	}
	var v float64
	for j := 1; j <= p; j++ {
		v += tr(j)
	}
	v /= float64(p)
	for j := p + 1; j <= i; j++ {
		v = (v*float64(p-1) + tr(j)) / float64(p)
	}
	return v
}

func refSMA(xs []float64, p, i int) float64 {
	var sum float64
	for _, v := range xs[i-p+1 : i+1] {
		sum += v
	}
	return sum / float64(p)
}

func smallParams() Params {
	return Params{
		FastPeriod:      5,
		MediumPeriod:    12,
		SlowPeriod:      30,
		RSIPeriod:       13,
		BBPeriod:        20,
		BBStdDev:        2,
		ATRPeriod:       14,
		VolumeSMAPeriod: 20,
	}
}

func TestEMA_HandCalculated(t *testing.T) {
	// EMA(3) по 1..5: seed=(1+2+3)/3=2, alpha=0.5 -> 3, 4
	e := NewEMA(3)
	want := []float64{0, 0, 2, 3, 4}
	for i, x := range []float64{1, 2, 3, 4, 5} {
		e.Update(x)
		assert.Equal(t, i >= 2, e.Ready(), "bar %d", i)
		if e.Ready() {
			assertRel(t, "ema", e.Value(), want[i])
		}
	}
}

func TestRSI_Bounds(t *testing.T) {
	up := NewRSI(5)
	down := NewRSI(5)
	flat := NewRSI(5)
	for i := 0; i < 20; i++ {
		up.Update(float64(100 + i))
		down.Update(float64(100 - i))
		flat.Update(100)
	}
	assert.Equal(t, 100.0, up.Value())
	assert.Equal(t, 0.0, down.Value())
	assert.Equal(t, 50.0, flat.Value())
}

func TestCompute_MatchesReference(t *testing.T) {
	p := smallParams()
	candles := synthetic(300)
	xs := closes(candles)
	vols := make([]float64, len(candles))
	for i, c := range candles {
		vols[i] = c.Volume
	}

	frames, err := Compute(candles, p)
	require.NoError(t, err)
	require.Len(t, frames, len(candles))

	for i, f := range frames {
		if i < p.SlowPeriod-1 {
			assert.True(t, math.IsNaN(f.EMASlow), "slow ema must be undefined at bar %d", i)
			assert.False(t, f.Complete())
		} else {
			assertRel(t, "ema slow", f.EMASlow, refEMA(xs, p.SlowPeriod, i))
		}
		if i >= p.FastPeriod-1 {
			assertRel(t, "ema fast", f.EMAFast, refEMA(xs, p.FastPeriod, i))
		}
		if i >= p.MediumPeriod-1 {
			assertRel(t, "ema medium", f.EMAMedium, refEMA(xs, p.MediumPeriod, i))
		}
		if i >= p.RSIPeriod {
			assertRel(t, "rsi", f.RSI, refRSI(xs, p.RSIPeriod, i))
			assert.GreaterOrEqual(t, f.RSI, 0.0)
			assert.LessOrEqual(t, f.RSI, 100.0)
		} else {
			assert.True(t, math.IsNaN(f.RSI))
		}
		if i < p.BBPeriod-1 {
			assert.True(t, math.IsNaN(f.BBMiddle))
		}
		if i >= p.BBPeriod-1 {
			lo, mid, hi := refBands(xs, p.BBPeriod, p.BBStdDev, i)
			assertRel(t, "bb lower", f.BBLower, lo)
			assertRel(t, "bb middle", f.BBMiddle, mid)
			assertRel(t, "bb upper", f.BBUpper, hi)
		}
		if i >= p.ATRPeriod {
			atr := refATR(candles, p.ATRPeriod, i)
			assertRel(t, "atr", f.ATR, atr)
			assert.GreaterOrEqual(t, f.ATR, 0.0)
		} else {
			assert.True(t, math.IsNaN(f.ATR), "atr must be undefined at bar %d", i)
		}
		if i >= p.VolumeSMAPeriod-1 {
			assertRel(t, "volume sma", f.VolumeSMA, refSMA(vols, p.VolumeSMAPeriod, i))
		} else {
			assert.True(t, math.IsNaN(f.VolumeSMA))
		}
	}
	assert.True(t, frames[len(frames)-1].Complete())
}

func TestCompute_NoLookahead(t *testing.T) {
	p := smallParams()
	candles := synthetic(120)

	full, err := Compute(candles, p)
	require.NoError(t, err)

	for i := range candles {
		prefix, err := Compute(candles[:i+1], p)
		require.NoError(t, err)
		got, want := prefix[i], full[i]
		for _, pair := range [][2]float64{
			{got.EMAFast, want.EMAFast},
			{got.EMAMedium, want.EMAMedium},
			{got.EMASlow, want.EMASlow},
			{got.RSI, want.RSI},
			{got.BBMiddle, want.BBMiddle},
			{got.ATR, want.ATR},
			{got.VolumeSMA, want.VolumeSMA},
		} {
			if math.IsNaN(pair[1]) {
				assert.True(t, math.IsNaN(pair[0]), "bar %d", i)
				continue
			}
			assert.Equal(t, pair[1], pair[0], "bar %d", i)
		}
	}
}

func TestCompute_Errors(t *testing.T) {
	p := smallParams()
	p.FastPeriod = p.SlowPeriod
	_, err := Compute(synthetic(10), p)
	assert.Error(t, err)

	c := synthetic(3)
	c[2].OpenTime = c[0].OpenTime
	_, err = Compute(c, smallParams())
	assert.Error(t, err)

	frames, err := Compute(nil, smallParams())
	require.NoError(t, err)
	assert.Empty(t, frames)

	// серии короче периодов ATR/BB не должны ронять расчёт
	frames, err = Compute(synthetic(5), smallParams())
	require.NoError(t, err)
	require.Len(t, frames, 5)
	for _, f := range frames {
		assert.True(t, math.IsNaN(f.ATR))
		assert.True(t, math.IsNaN(f.BBMiddle))
		assert.True(t, math.IsNaN(f.VolumeSMA))
	}
}

func TestParamsWarmup(t *testing.T) {
	assert.Equal(t, 200, DefaultParams().Warmup())
	p := smallParams()
	p.SlowPeriod = 10
	p.MediumPeriod = 8
	p.FastPeriod = 4
	assert.Equal(t, 20, p.Warmup())

	p.BBPeriod = 5
	p.VolumeSMAPeriod = 5
	assert.Equal(t, p.ATRPeriod+1, p.Warmup())
}

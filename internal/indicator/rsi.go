package indicator

// RSI по Уайлдеру: первые средние - простые по period изменениям,
// дальше avg = (prev*(n-1) + x) / n.
type RSI struct {
	period  int
	prev    float64
	hasPrev bool
	n       int
	gainSum float64
	lossSum float64
	avgGain float64
	avgLoss float64
}

func NewRSI(period int) *RSI {
	if period <= 1 {
		period = 1
	}
	return &RSI{period: period}
}

func (r *RSI) Update(price float64) {
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return
	}
	change := price - r.prev
	r.prev = price

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.n < r.period {
		r.gainSum += gain
		r.lossSum += loss
		r.n++
		if r.n == r.period {
			r.avgGain = r.gainSum / float64(r.period)
			r.avgLoss = r.lossSum / float64(r.period)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RSI) Ready() bool { return r.n >= r.period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

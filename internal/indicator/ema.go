package indicator

// EMA - экспоненциальная средняя. Первое значение - SMA первых period цен,
// дальше alpha = 2/(period+1).
type EMA struct {
	period int
	alpha  float64
	value  float64
	sum    float64
	warmup int
}

func NewEMA(period int) *EMA {
	if period <= 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *EMA) Update(price float64) {
	if e.warmup < e.period {
		e.sum += price
		e.warmup++
		if e.warmup == e.period {
			e.value = e.sum / float64(e.period)
		}
		return
	}
	e.value += e.alpha * (price - e.value)
}

func (e *EMA) Ready() bool    { return e.warmup >= e.period }
func (e *EMA) Value() float64 { return e.value }

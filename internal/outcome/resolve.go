package outcome

import (
	"fmt"
	"time"

	"trend_bot/internal/models"
)

// TieBreak - что считать первым, если в одном окне задеты и стоп, и тейк.
type TieBreak string

const (
	// SLFirst - консервативно: при одновременном касании засчитываем стоп.
	SLFirst TieBreak = "sl_first"
	// TPFirst - тейки сверху вниз, потом стоп.
	TPFirst TieBreak = "tp_first"
)

func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case SLFirst, "":
		return SLFirst, nil
	case TPFirst:
		return TPFirst, nil
	}
	return "", fmt.Errorf("unknown tie break policy %q", s)
}

// Hit - какой уровень сработал и по какой цене выходим.
type Hit struct {
	Status    models.Status
	ExitPrice float64
}

// AfterSignalBar оставляет только бары, открытые после бара сигнала.
// Окно может захватить бары до входа, их экстремумы к сигналу не относятся.
func AfterSignalBar(window []models.Candle, signalBar time.Time) []models.Candle {
	out := make([]models.Candle, 0, len(window))
	for _, c := range window {
		if c.OpenTime.After(signalBar) {
			out = append(out, c)
		}
	}
	return out
}

// Resolve проверяет окно свечей против уровней сигнала. ok=false - ничего не задето
// (или проверять нечего), сигнал остаётся ACTIVE.
func Resolve(sig models.Signal, window []models.Candle, policy TieBreak) (Hit, bool) {
	lv := sig.Levels
	dir := sig.Trend.Direction()
	if lv == nil || len(window) == 0 || dir == models.DirectionFlat {
		return Hit{}, false
	}
	low, high := models.LowHigh(window)

	var slHit bool
	var tp Hit
	var tpOK bool
	if dir == models.DirectionLong {
		slHit = low <= lv.StopLoss
		switch {
		case high >= lv.TP3:
			tp, tpOK = Hit{models.StatusTP3Hit, lv.TP3}, true
		case high >= lv.TP2:
			tp, tpOK = Hit{models.StatusTP2Hit, lv.TP2}, true
		case high >= lv.TP1:
			tp, tpOK = Hit{models.StatusTP1Hit, lv.TP1}, true
		}
	} else {
		slHit = high >= lv.StopLoss
		switch {
		case low <= lv.TP3:
			tp, tpOK = Hit{models.StatusTP3Hit, lv.TP3}, true
		case low <= lv.TP2:
			tp, tpOK = Hit{models.StatusTP2Hit, lv.TP2}, true
		case low <= lv.TP1:
			tp, tpOK = Hit{models.StatusTP1Hit, lv.TP1}, true
		}
	}
	sl := Hit{models.StatusSLHit, lv.StopLoss}

	if policy == TPFirst {
		if tpOK {
			return tp, true
		}
		if slHit {
			return sl, true
		}
		return Hit{}, false
	}

	if slHit {
		return sl, true
	}
	if tpOK {
		return tp, true
	}
	return Hit{}, false
}

package outcome

import (
	"errors"
	"fmt"
	"math"

	"trend_bot/internal/models"
)

var ErrNoEntry = errors.New("signal has no entry price")

// ComputePnL - (exit-entry)/entry*100, со сменой знака для шорта, и с плечом.
func ComputePnL(dir models.Direction, entry, exit, leverage float64) (pct, withLeverage float64, err error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return 0, 0, fmt.Errorf("%w: %v", ErrNoEntry, entry)
	}
	if math.IsNaN(exit) || math.IsInf(exit, 0) {
		return 0, 0, fmt.Errorf("bad exit price %v", exit)
	}
	pct = (exit - entry) / entry * 100
	if dir == models.DirectionShort {
		pct = -pct
	}
	return pct, pct * leverage, nil
}

package outcome

import (
	"errors"
	"fmt"

	"trend_bot/internal/models"
)

const DefaultHorizon = 5

var ErrNoForwardData = errors.New("no forward bars to simulate")

type SimConfig struct {
	Horizon  int
	Leverage float64
	TieBreak TieBreak
}

// Simulate - исторический вариант: смотрим не дальше Horizon баров после входа,
// по одному бару за раз. Если ничего не задето - закрываем по close последнего
// просмотренного бара со статусом CLOSED_MANUAL.
func Simulate(sig models.Signal, forward []models.Candle, cfg SimConfig) (models.Resolution, error) {
	if !sig.Tradable() {
		return models.Resolution{}, ErrNoEntry
	}
	if len(forward) == 0 {
		return models.Resolution{}, ErrNoForwardData
	}
	horizon := cfg.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if horizon > len(forward) {
		horizon = len(forward)
	}
	policy := cfg.TieBreak
	if policy == "" {
		policy = SLFirst
	}

	res := models.Resolution{}
	found := false
	for _, bar := range forward[:horizon] {
		if hit, ok := Resolve(sig, []models.Candle{bar}, policy); ok {
			res = models.Resolution{Status: hit.Status, ExitPrice: hit.ExitPrice, OutcomeAt: bar.OpenTime.UTC()}
			found = true
			break
		}
	}
	if !found {
		last := forward[horizon-1]
		res = models.Resolution{Status: models.StatusClosedManual, ExitPrice: last.Close, OutcomeAt: last.OpenTime.UTC()}
	}

	pct, lev, err := ComputePnL(sig.Trend.Direction(), sig.Levels.Entry, res.ExitPrice, cfg.Leverage)
	if err != nil {
		return res, fmt.Errorf("outcome.Simulate: %w", err)
	}
	res.PnLPercentage, res.PnLWithLeverage = &pct, &lev
	return res, nil
}

package strategy

import (
	"math"

	"trend_bot/internal/models"
)

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DetermineTrend - порядок цены и трёх EMA. Ровно одна метка на любой вход.
func DetermineTrend(price, fast, medium, slow float64) models.Trend {
	if !finite(price, fast, medium, slow) {
		return models.TrendSideways
	}
	switch {
	case price > fast && fast > medium && medium > slow:
		return models.TrendStrongBullish
	case price < fast && fast < medium && medium < slow:
		return models.TrendStrongBearish
	case price > slow && price > medium:
		return models.TrendBullish
	case price < slow && price < medium:
		return models.TrendBearish
	default:
		return models.TrendSideways
	}
}

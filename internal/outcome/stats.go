package outcome

import (
	"sort"

	"trend_bot/internal/models"
)

type SymbolStats struct {
	Symbol string
	Total  int
	Wins   int
	Losses int
	NetPnL float64
}

func (s SymbolStats) WinRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Total) * 100
}

type Summary struct {
	SymbolStats
	ByStatus  map[models.Status]int
	BySymbol  []SymbolStats
	BestPnL   float64
	WorstPnL  float64
	hasPnLExt bool
}

// win - тейк или положительный результат (CLOSED_MANUAL в плюс тоже победа).
func win(s models.Signal) bool {
	if s.Status.IsTakeProfit() {
		return true
	}
	return s.PnLPercentage != nil && *s.PnLPercentage > 0
}

// Stats - сводка по закрытым сигналам. ACTIVE пропускаются.
func Stats(signals []models.Signal) Summary {
	sum := Summary{ByStatus: make(map[models.Status]int)}
	per := make(map[string]*SymbolStats)

	for _, s := range signals {
		if !s.Status.Terminal() {
			continue
		}
		st := per[s.Symbol]
		if st == nil {
			st = &SymbolStats{Symbol: s.Symbol}
			per[s.Symbol] = st
		}
		st.Total++
		sum.Total++
		sum.ByStatus[s.Status]++
		if win(s) {
			st.Wins++
			sum.Wins++
		} else {
			st.Losses++
			sum.Losses++
		}
		if p := s.PnLPercentage; p != nil {
			st.NetPnL += *p
			sum.NetPnL += *p
			if !sum.hasPnLExt || *p > sum.BestPnL {
				sum.BestPnL = *p
			}
			if !sum.hasPnLExt || *p < sum.WorstPnL {
				sum.WorstPnL = *p
			}
			sum.hasPnLExt = true
		}
	}
	sum.Symbol = "ALL"

	for _, st := range per {
		sum.BySymbol = append(sum.BySymbol, *st)
	}
	sort.Slice(sum.BySymbol, func(i, j int) bool {
		if sum.BySymbol[i].NetPnL != sum.BySymbol[j].NetPnL {
			return sum.BySymbol[i].NetPnL > sum.BySymbol[j].NetPnL
		}
		return sum.BySymbol[i].Symbol < sum.BySymbol[j].Symbol
	})
	return sum
}

package strategy

import (
	"errors"
	"fmt"

	"trend_bot/internal/models"
)

var ErrNoVolatility = errors.New("atr must be positive to build levels")

// Multipliers - множители ATR для стопа и трёх тейков.
type Multipliers struct {
	SL  float64 `yaml:"sl"`
	TP1 float64 `yaml:"tp1"`
	TP2 float64 `yaml:"tp2"`
	TP3 float64 `yaml:"tp3"`
}

func DefaultMultipliers() Multipliers {
	return Multipliers{SL: 1.2, TP1: 1.3, TP2: 2.3, TP3: 3.2}
}

func (m Multipliers) Validate() error {
	if m.SL <= 0 || m.TP1 <= 0 {
		return fmt.Errorf("multipliers must be positive: %+v", m)
	}
	if !(m.TP1 < m.TP2 && m.TP2 < m.TP3) {
		return fmt.Errorf("tp multipliers must be ascending: %.2f/%.2f/%.2f", m.TP1, m.TP2, m.TP3)
	}
	return nil
}

// Levels считает вход и уровни для сильного тренда. Для остальных - nil, nil.
func Levels(trend models.Trend, entry, atr float64, m Multipliers) (*models.Brackets, error) {
	if !trend.Strong() {
		return nil, nil
	}
	if !finite(entry, atr) || entry <= 0 {
		return nil, fmt.Errorf("strategy.Levels: bad entry %v", entry)
	}
	if atr <= 0 {
		return nil, ErrNoVolatility
	}

	// знак: +1 лонг, -1 шорт
	sign := 1.0
	if trend.Direction() == models.DirectionShort {
		sign = -1
	}
	at := func(mult float64) float64 { return entry * (1 + sign*mult*atr/entry) }

	b := &models.Brackets{
		Entry:    entry,
		StopLoss: entry * (1 - sign*m.SL*atr/entry),
		TP1:      at(m.TP1),
		TP2:      at(m.TP2),
		TP3:      at(m.TP3),
	}
	if err := b.Check(trend.Direction()); err != nil {
		return nil, fmt.Errorf("strategy.Levels: %w", err)
	}
	return b, nil
}

package store

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"trend_bot/internal/models"
)

// Record - плоское представление строки signals, общее для SQL-бэкендов.
type Record struct {
	ID            int64
	Symbol        string
	Timeframe     string
	CreatedAt     time.Time
	KlineOpenTime time.Time
	LastPrice     float64
	Indicators    []byte
	Trend         string
	Status        string

	Entry    *float64
	StopLoss *float64
	TP1      *float64
	TP2      *float64
	TP3      *float64

	ExitPrice       *float64
	OutcomeAt       *time.Time
	PnLPercentage   *float64
	PnLWithLeverage *float64
}

// NewRecord готовит сигнал к вставке.
func NewRecord(s *models.Signal) (Record, error) {
	raw, err := sonic.Marshal(s.Indicators)
	if err != nil {
		return Record{}, fmt.Errorf("store.NewRecord: encode indicators: %w", err)
	}
	r := Record{
		ID:              s.ID,
		Symbol:          s.Symbol,
		Timeframe:       s.Timeframe,
		CreatedAt:       s.CreatedAt.UTC(),
		KlineOpenTime:   s.KlineOpenTime.UTC(),
		LastPrice:       s.LastPrice,
		Indicators:      raw,
		Trend:           string(s.Trend),
		Status:          string(s.Status),
		ExitPrice:       s.ExitPrice,
		OutcomeAt:       s.OutcomeAt,
		PnLPercentage:   s.PnLPercentage,
		PnLWithLeverage: s.PnLWithLeverage,
	}
	if lv := s.Levels; lv != nil {
		r.Entry, r.StopLoss, r.TP1, r.TP2, r.TP3 = &lv.Entry, &lv.StopLoss, &lv.TP1, &lv.TP2, &lv.TP3
	}
	return r, nil
}

// Signal собирает доменный сигнал обратно. Уровни - либо все, либо ни одного.
func (r Record) Signal() (models.Signal, error) {
	s := models.Signal{
		ID:              r.ID,
		Symbol:          r.Symbol,
		Timeframe:       r.Timeframe,
		CreatedAt:       r.CreatedAt.UTC(),
		KlineOpenTime:   r.KlineOpenTime.UTC(),
		LastPrice:       r.LastPrice,
		Trend:           models.Trend(r.Trend),
		Status:          models.Status(r.Status),
		ExitPrice:       r.ExitPrice,
		PnLPercentage:   r.PnLPercentage,
		PnLWithLeverage: r.PnLWithLeverage,
	}
	if r.OutcomeAt != nil {
		at := r.OutcomeAt.UTC()
		s.OutcomeAt = &at
	}
	if len(r.Indicators) > 0 {
		if err := sonic.Unmarshal(r.Indicators, &s.Indicators); err != nil {
			return models.Signal{}, fmt.Errorf("store.Record: decode indicators of %d: %w", r.ID, err)
		}
	}

	set := 0
	for _, p := range []*float64{r.Entry, r.StopLoss, r.TP1, r.TP2, r.TP3} {
		if p != nil {
			set++
		}
	}
	switch set {
	case 0:
	case 5:
		s.Levels = &models.Brackets{Entry: *r.Entry, StopLoss: *r.StopLoss, TP1: *r.TP1, TP2: *r.TP2, TP3: *r.TP3}
	default:
		return models.Signal{}, fmt.Errorf("store.Record: signal %d has partial levels", r.ID)
	}
	return s, nil
}

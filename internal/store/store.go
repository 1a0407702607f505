package store

import (
	"context"
	"errors"
	"time"

	"trend_bot/internal/models"
)

var (
	ErrNotFound        = errors.New("signal not found")
	ErrAlreadyResolved = errors.New("signal already resolved")
)

// Store - хранилище сигналов.
//
// Update применяет закрытие целиком одной записью и только к ACTIVE сигналу:
// повторное закрытие возвращает ErrAlreadyResolved и ничего не меняет.
type Store interface {
	Insert(ctx context.Context, s *models.Signal) (int64, error)
	// InsertResolved - вставка уже закрытого сигнала одной командой.
	// Нужна для исторических сигналов: ACTIVE-строка не должна появиться даже на миг.
	InsertResolved(ctx context.Context, s *models.Signal, res models.Resolution) (int64, error)
	// QueryActive - ACTIVE сигналы по символу, "" - по всем. Порядок по id.
	QueryActive(ctx context.Context, symbol string) ([]models.Signal, error)
	// QueryTradable - то же, но только сигналы с уровнями (STRONG_*).
	QueryTradable(ctx context.Context, symbol string) ([]models.Signal, error)
	Update(ctx context.Context, id int64, res models.Resolution) error
	// Closed - закрытые сигналы с outcome_at >= since.
	Closed(ctx context.Context, since time.Time) ([]models.Signal, error)
	Close() error
}

// ValidateInsert - общая проверка перед вставкой.
func ValidateInsert(s *models.Signal) error {
	if s == nil {
		return errors.New("nil signal")
	}
	if s.Status != models.StatusActive {
		return errors.New("only ACTIVE signals can be inserted")
	}
	if s.Trend.Strong() != (s.Levels != nil) {
		return models.ErrMissingLevels
	}
	return nil
}

// Resolved проверяет исторический сигнал и возвращает копию с применённым закрытием.
func Resolved(s *models.Signal, res models.Resolution) (models.Signal, error) {
	if err := ValidateInsert(s); err != nil {
		return models.Signal{}, err
	}
	if !s.Tradable() {
		return models.Signal{}, errors.New("only tradable signals can be inserted resolved")
	}
	if err := res.Validate(); err != nil {
		return models.Signal{}, err
	}
	row := *s
	row.Apply(res)
	return row, nil
}

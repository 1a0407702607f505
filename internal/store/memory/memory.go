package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
)

// Store держит сигналы в памяти. Используется в тестах и при db.driver=memory.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]models.Signal
}

func New() *Store {
	return &Store{rows: make(map[int64]models.Signal)}
}

func (m *Store) Insert(_ context.Context, s *models.Signal) (int64, error) {
	if err := store.ValidateInsert(s); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	row := clone(*s)
	row.ID = m.nextID
	m.rows[row.ID] = row
	s.ID = row.ID
	return row.ID, nil
}

func (m *Store) InsertResolved(_ context.Context, s *models.Signal, res models.Resolution) (int64, error) {
	row, err := store.Resolved(s, res)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	row = clone(row)
	row.ID = m.nextID
	m.rows[row.ID] = row
	s.ID = row.ID
	return row.ID, nil
}

func (m *Store) QueryTradable(_ context.Context, symbol string) ([]models.Signal, error) {
	return m.filter(func(s models.Signal) bool {
		return s.Status == models.StatusActive && s.Tradable() && (symbol == "" || s.Symbol == symbol)
	}), nil
}

func (m *Store) QueryActive(_ context.Context, symbol string) ([]models.Signal, error) {
	return m.filter(func(s models.Signal) bool {
		return s.Status == models.StatusActive && (symbol == "" || s.Symbol == symbol)
	}), nil
}

func (m *Store) Closed(_ context.Context, since time.Time) ([]models.Signal, error) {
	return m.filter(func(s models.Signal) bool {
		return s.Status.Terminal() && s.OutcomeAt != nil && !s.OutcomeAt.Before(since)
	}), nil
}

func (m *Store) Update(_ context.Context, id int64, res models.Resolution) error {
	if err := res.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	if row.Status != models.StatusActive {
		return store.ErrAlreadyResolved
	}
	row.Apply(res)
	m.rows[id] = row
	return nil
}

// Get - для тестов и отладки.
func (m *Store) Get(id int64) (models.Signal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	return clone(row), ok
}

func (m *Store) Close() error { return nil }

func (m *Store) filter(keep func(models.Signal) bool) []models.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Signal, 0)
	for _, s := range m.rows {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// clone копирует указатели, чтобы вызывающий не менял строки хранилища.
func clone(s models.Signal) models.Signal {
	if s.Levels != nil {
		lv := *s.Levels
		s.Levels = &lv
	}
	s.ExitPrice = copyPtr(s.ExitPrice)
	s.OutcomeAt = copyPtr(s.OutcomeAt)
	s.PnLPercentage = copyPtr(s.PnLPercentage)
	s.PnLWithLeverage = copyPtr(s.PnLWithLeverage)
	return s
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

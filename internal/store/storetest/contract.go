// Package storetest - общий набор проверок для реализаций store.Store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
)

var base = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func StrongSignal(t *testing.T, symbol string) *models.Signal {
	t.Helper()
	sig, err := models.NewSignal(symbol, "15m", base, base.Add(-15*time.Minute), 110,
		models.IndicatorSnapshot{EMAFast: 105, EMAMedium: 100, EMASlow: 95, RSI: 61.5, ATR: 1.32, FastPeriod: 34, MediumPeriod: 89, SlowPeriod: 200},
		models.TrendStrongBullish,
		&models.Brackets{Entry: 110, StopLoss: 95, TP1: 115, TP2: 120, TP3: 125},
	)
	require.NoError(t, err)
	return sig
}

func InfoSignal(t *testing.T, symbol string) *models.Signal {
	t.Helper()
	sig, err := models.NewSignal(symbol, "15m", base, base, 100, models.IndicatorSnapshot{}, models.TrendSideways, nil)
	require.NoError(t, err)
	return sig
}

func pf(v float64) *float64 { return &v }

// Run прогоняет контракт хранилища. newStore должен отдавать пустое хранилище.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("insert assigns ids and round-trips fields", func(t *testing.T) {
		s := newStore(t)
		sig := StrongSignal(t, "BTC-USDT-SWAP")
		id, err := s.Insert(ctx, sig)
		require.NoError(t, err)
		assert.Positive(t, id)
		assert.Equal(t, id, sig.ID)

		info := InfoSignal(t, "BTC-USDT-SWAP")
		id2, err := s.Insert(ctx, info)
		require.NoError(t, err)
		assert.NotEqual(t, id, id2)

		active, err := s.QueryActive(ctx, "")
		require.NoError(t, err)
		require.Len(t, active, 2)

		got := active[0]
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "BTC-USDT-SWAP", got.Symbol)
		assert.Equal(t, "15m", got.Timeframe)
		assert.Equal(t, models.TrendStrongBullish, got.Trend)
		assert.Equal(t, models.StatusActive, got.Status)
		assert.True(t, got.CreatedAt.Equal(base))
		require.NotNil(t, got.Levels)
		assert.Equal(t, *sig.Levels, *got.Levels)
		assert.Equal(t, 61.5, got.Indicators.RSI)
		assert.Equal(t, 200, got.Indicators.SlowPeriod)
		assert.Nil(t, got.ExitPrice)
		assert.Nil(t, got.OutcomeAt)

		assert.Nil(t, active[1].Levels)
	})

	t.Run("query active filters by symbol", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Insert(ctx, StrongSignal(t, "BTC-USDT-SWAP"))
		require.NoError(t, err)
		_, err = s.Insert(ctx, StrongSignal(t, "ETH-USDT-SWAP"))
		require.NoError(t, err)

		eth, err := s.QueryActive(ctx, "ETH-USDT-SWAP")
		require.NoError(t, err)
		require.Len(t, eth, 1)
		assert.Equal(t, "ETH-USDT-SWAP", eth[0].Symbol)
	})

	t.Run("update resolves once", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, StrongSignal(t, "SOL-USDT-SWAP"))
		require.NoError(t, err)

		at := base.Add(2 * time.Hour)
		res := models.Resolution{
			Status:          models.StatusSLHit,
			ExitPrice:       95,
			OutcomeAt:       at,
			PnLPercentage:   pf(-13.636),
			PnLWithLeverage: pf(-136.36),
		}
		require.NoError(t, s.Update(ctx, id, res))

		again := res
		again.Status = models.StatusTP3Hit
		again.ExitPrice = 125
		assert.ErrorIs(t, s.Update(ctx, id, again), store.ErrAlreadyResolved)

		active, err := s.QueryActive(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, active)

		closed, err := s.Closed(ctx, base)
		require.NoError(t, err)
		require.Len(t, closed, 1)
		c := closed[0]
		assert.Equal(t, models.StatusSLHit, c.Status)
		require.NotNil(t, c.ExitPrice)
		assert.Equal(t, 95.0, *c.ExitPrice)
		require.NotNil(t, c.OutcomeAt)
		assert.True(t, c.OutcomeAt.Equal(at))
		require.NotNil(t, c.PnLWithLeverage)
		assert.InDelta(t, -136.36, *c.PnLWithLeverage, 1e-9)

		later, err := s.Closed(ctx, at.Add(time.Minute))
		require.NoError(t, err)
		assert.Empty(t, later)
	})

	t.Run("update without pnl keeps pnl null", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, StrongSignal(t, "XRP-USDT-SWAP"))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, id, models.Resolution{Status: models.StatusTP1Hit, ExitPrice: 115, OutcomeAt: base}))

		closed, err := s.Closed(ctx, base)
		require.NoError(t, err)
		require.Len(t, closed, 1)
		assert.Nil(t, closed[0].PnLPercentage)
		assert.Nil(t, closed[0].PnLWithLeverage)
	})

	t.Run("update unknown id", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, 4242, models.Resolution{Status: models.StatusTP1Hit, ExitPrice: 1, OutcomeAt: base})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update rejects non-terminal status", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, StrongSignal(t, "BNB-USDT-SWAP"))
		require.NoError(t, err)
		assert.Error(t, s.Update(ctx, id, models.Resolution{Status: models.StatusActive, ExitPrice: 1, OutcomeAt: base}))
	})

	t.Run("insert rejects non-active", func(t *testing.T) {
		s := newStore(t)
		sig := StrongSignal(t, "BTC-USDT-SWAP")
		sig.Status = models.StatusTP1Hit
		_, err := s.Insert(ctx, sig)
		assert.Error(t, err)
	})

	t.Run("query tradable skips informational", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Insert(ctx, StrongSignal(t, "BTC-USDT-SWAP"))
		require.NoError(t, err)
		_, err = s.Insert(ctx, InfoSignal(t, "BTC-USDT-SWAP"))
		require.NoError(t, err)
		_, err = s.Insert(ctx, StrongSignal(t, "ETH-USDT-SWAP"))
		require.NoError(t, err)

		all, err := s.QueryTradable(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		btc, err := s.QueryTradable(ctx, "BTC-USDT-SWAP")
		require.NoError(t, err)
		require.Len(t, btc, 1)
		assert.Equal(t, id, btc[0].ID)
		assert.NotNil(t, btc[0].Levels)
	})

	t.Run("insert resolved writes a closed row", func(t *testing.T) {
		s := newStore(t)
		sig := StrongSignal(t, "BTC-USDT-SWAP")
		at := base.Add(45 * time.Minute)
		id, err := s.InsertResolved(ctx, sig, models.Resolution{
			Status:          models.StatusTP2Hit,
			ExitPrice:       120,
			OutcomeAt:       at,
			PnLPercentage:   pf(9.09),
			PnLWithLeverage: pf(90.9),
		})
		require.NoError(t, err)
		assert.Equal(t, id, sig.ID)
		assert.Equal(t, models.StatusActive, sig.Status, "caller's signal must stay untouched")

		active, err := s.QueryActive(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, active)

		closed, err := s.Closed(ctx, base)
		require.NoError(t, err)
		require.Len(t, closed, 1)
		c := closed[0]
		assert.Equal(t, id, c.ID)
		assert.Equal(t, models.StatusTP2Hit, c.Status)
		require.NotNil(t, c.ExitPrice)
		assert.Equal(t, 120.0, *c.ExitPrice)
		require.NotNil(t, c.OutcomeAt)
		assert.True(t, c.OutcomeAt.Equal(at))
		require.NotNil(t, c.PnLWithLeverage)
		assert.InDelta(t, 90.9, *c.PnLWithLeverage, 1e-9)
		require.NotNil(t, c.Levels)

		assert.ErrorIs(t, s.Update(ctx, id, models.Resolution{Status: models.StatusSLHit, ExitPrice: 95, OutcomeAt: at}),
			store.ErrAlreadyResolved)
	})

	t.Run("insert resolved rejects bad input", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InsertResolved(ctx, InfoSignal(t, "BTC-USDT-SWAP"),
			models.Resolution{Status: models.StatusClosedManual, ExitPrice: 100, OutcomeAt: base})
		assert.Error(t, err)

		_, err = s.InsertResolved(ctx, StrongSignal(t, "BTC-USDT-SWAP"),
			models.Resolution{Status: models.StatusActive, ExitPrice: 100, OutcomeAt: base})
		assert.Error(t, err)

		active, err := s.QueryActive(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, active)
		closed, err := s.Closed(ctx, base)
		require.NoError(t, err)
		assert.Empty(t, closed)
	})

	t.Run("concurrent updates to distinct ids", func(t *testing.T) {
		s := newStore(t)
		ids := make([]int64, 10)
		for i := range ids {
			id, err := s.Insert(ctx, StrongSignal(t, "BTC-USDT-SWAP"))
			require.NoError(t, err)
			ids[i] = id
		}

		var wg sync.WaitGroup
		errs := make([]error, len(ids))
		for i, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Update(ctx, id, models.Resolution{Status: models.StatusTP2Hit, ExitPrice: 120, OutcomeAt: base})
			}()
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
		closed, err := s.Closed(ctx, base)
		require.NoError(t, err)
		assert.Len(t, closed, len(ids))
	})
}

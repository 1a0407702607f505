package outcome

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
	"trend_bot/internal/store/memory"
)

type MockCandleSource struct {
	mock.Mock
}

func (m *MockCandleSource) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	args := m.Called(ctx, symbol, timeframe, limit)
	candles, _ := args.Get(0).([]models.Candle)
	return candles, args.Error(1)
}

type recordingNotifier struct {
	mu       sync.Mutex
	resolved []models.Signal
}

func (n *recordingNotifier) SignalResolved(_ context.Context, s models.Signal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, s)
}

// failingStore ломает запись по выбранным id.
type failingStore struct {
	store.Store
	failIDs map[int64]bool
}

func (f *failingStore) Update(ctx context.Context, id int64, res models.Resolution) error {
	if f.failIDs[id] {
		return errors.New("disk full")
	}
	return f.Store.Update(ctx, id, res)
}

func insert(t *testing.T, st store.Store, symbol string, trend models.Trend, lv *models.Brackets) int64 {
	t.Helper()
	sig, err := models.NewSignal(symbol, "15m", signalBar.Add(15*time.Minute), signalBar, 110, models.IndicatorSnapshot{}, trend, lv)
	require.NoError(t, err)
	id, err := st.Insert(context.Background(), sig)
	require.NoError(t, err)
	return id
}

var longLevels = &models.Brackets{Entry: 110, StopLoss: 95, TP1: 115, TP2: 120, TP3: 125}

func newTestEngine(src CandleSource, st store.Store, n Notifier) *Engine {
	e := NewEngine(Config{Window: 15, FetchTimeout: time.Second, Concurrency: 4, Leverage: 10}, src, st, n, zap.NewNop(), nil)
	e.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRunCycle_ResolvesAndIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	slID := insert(t, st, "BTC-USDT-SWAP", models.TrendStrongBullish, longLevels)
	tpID := insert(t, st, "ETH-USDT-SWAP", models.TrendStrongBullish, longLevels)
	failID := insert(t, st, "SOL-USDT-SWAP", models.TrendStrongBullish, longLevels)
	quietID := insert(t, st, "XRP-USDT-SWAP", models.TrendStrongBullish, longLevels)
	infoID := insert(t, st, "BNB-USDT-SWAP", models.TrendBullish, nil)

	src := new(MockCandleSource)
	src.On("GetCandles", mock.Anything, "BTC-USDT-SWAP", "15m", 15).Return(window(90, 130), nil)
	src.On("GetCandles", mock.Anything, "ETH-USDT-SWAP", "15m", 15).Return(window(108, 116), nil)
	src.On("GetCandles", mock.Anything, "SOL-USDT-SWAP", "15m", 15).Return(nil, errors.New("okx 50011"))
	src.On("GetCandles", mock.Anything, "XRP-USDT-SWAP", "15m", 15).Return(window(100, 112), nil)

	n := &recordingNotifier{}
	e := newTestEngine(src, st, n)

	rep, err := e.RunCycle(ctx)
	require.NoError(t, err)
	e.Wait()

	assert.Equal(t, CycleReport{Active: 4, Checked: 4, Resolved: 2, FetchFailed: 1}, rep)
	src.AssertNumberOfCalls(t, "GetCandles", 4)

	sl, _ := st.Get(slID)
	assert.Equal(t, models.StatusSLHit, sl.Status)
	assert.Equal(t, 95.0, *sl.ExitPrice)
	assert.Less(t, *sl.PnLPercentage, 0.0)
	assert.InDelta(t, *sl.PnLPercentage*10, *sl.PnLWithLeverage, 1e-9)

	tp, _ := st.Get(tpID)
	assert.Equal(t, models.StatusTP1Hit, tp.Status)
	assert.Equal(t, 115.0, *tp.ExitPrice)
	assert.True(t, tp.OutcomeAt.Equal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)))

	for _, id := range []int64{failID, quietID, infoID} {
		s, _ := st.Get(id)
		assert.Equal(t, models.StatusActive, s.Status, "id %d", id)
		assert.Nil(t, s.ExitPrice)
	}

	assert.Len(t, n.resolved, 2)
}

func TestRunCycle_TerminalSignalsAreNotRevisited(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := insert(t, st, "BTC-USDT-SWAP", models.TrendStrongBullish, longLevels)

	src := new(MockCandleSource)
	src.On("GetCandles", mock.Anything, "BTC-USDT-SWAP", "15m", 15).Return(window(108, 116), nil).Once()

	e := newTestEngine(src, st, nil)
	rep, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)

	// второй цикл: сигнал уже закрыт, окно не запрашивается
	rep, err = e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{}, rep)
	src.AssertExpectations(t)

	s, _ := st.Get(id)
	assert.Equal(t, models.StatusTP1Hit, s.Status)
}

func TestRunCycle_StoreFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	a := insert(t, mem, "BTC-USDT-SWAP", models.TrendStrongBullish, longLevels)
	b := insert(t, mem, "ETH-USDT-SWAP", models.TrendStrongBullish, longLevels)
	st := &failingStore{Store: mem, failIDs: map[int64]bool{a: true}}

	src := new(MockCandleSource)
	src.On("GetCandles", mock.Anything, mock.Anything, "15m", 15).Return(window(108, 121), nil)

	e := newTestEngine(src, st, nil)
	rep, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.StoreFailed)
	assert.Equal(t, 1, rep.Resolved)

	sa, _ := mem.Get(a)
	sb, _ := mem.Get(b)
	assert.Equal(t, models.StatusActive, sa.Status)
	assert.Equal(t, models.StatusTP2Hit, sb.Status)
}

func TestReconcile_FetchTimeoutIsIsolated(t *testing.T) {
	slow := new(MockCandleSource)
	slow.On("GetCandles", mock.Anything, "BTC-USDT-SWAP", "15m", 15).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	slow.On("GetCandles", mock.Anything, "ETH-USDT-SWAP", "15m", 15).Return(window(108, 126), nil)

	e := NewEngine(Config{Window: 15, FetchTimeout: 20 * time.Millisecond, Leverage: 1}, slow, memory.New(), nil, zap.NewNop(), nil)

	btc := longSignal(t)
	btc.ID = 10
	eth := longSignal(t)
	eth.ID = 11
	eth.Symbol = "ETH-USDT-SWAP"

	updates := e.Reconcile(context.Background(), []models.Signal{btc, eth})
	require.Len(t, updates, 1)
	assert.Equal(t, int64(11), updates[0].Signal.ID)
	assert.Equal(t, models.StatusTP3Hit, updates[0].Resolution.Status)
}

func TestReconcile_BearishPnLSign(t *testing.T) {
	src := new(MockCandleSource)
	src.On("GetCandles", mock.Anything, "ETH-USDT-SWAP", "15m", 15).Return(window(99, 108), nil)

	e := newTestEngine(src, memory.New(), nil)
	updates := e.Reconcile(context.Background(), []models.Signal{shortSignal(t)})
	require.Len(t, updates, 1)
	res := updates[0].Resolution
	assert.Equal(t, models.StatusTP2Hit, res.Status)
	require.NotNil(t, res.PnLPercentage)
	assert.Greater(t, *res.PnLPercentage, 0.0)
}

func TestRunCycle_IgnoresBarsBeforeSignal(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id := insert(t, st, "BTC-USDT-SWAP", models.TrendStrongBullish, longLevels)

	// бар до входа пробивает стоп, после входа - только TP1
	w := append([]models.Candle{{OpenTime: signalBar.Add(-15 * time.Minute), Low: 90, High: 111, Close: 110}}, window(108, 116)...)
	src := new(MockCandleSource)
	src.On("GetCandles", mock.Anything, "BTC-USDT-SWAP", "15m", 15).Return(w, nil)

	e := newTestEngine(src, st, nil)
	rep, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)

	s, _ := st.Get(id)
	assert.Equal(t, models.StatusTP1Hit, s.Status)
}

func TestRunCycle_ReadsOnlyTradable(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	for i := 0; i < 3; i++ {
		insert(t, st, "BNB-USDT-SWAP", models.TrendSideways, nil)
	}

	src := new(MockCandleSource)
	e := newTestEngine(src, st, nil)
	rep, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{}, rep)
	src.AssertNotCalled(t, "GetCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

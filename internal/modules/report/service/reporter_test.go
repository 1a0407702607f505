package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
	"trend_bot/internal/store/memory"
	"trend_bot/internal/store/storetest"
)

type recordingNotifier struct {
	titles     []string
	sums       []outcome.Summary
	heartbeats []int
}

func (r *recordingNotifier) Report(_ context.Context, title string, sum outcome.Summary) {
	r.titles = append(r.titles, title)
	r.sums = append(r.sums, sum)
}

func (r *recordingNotifier) Heartbeat(_ context.Context, n int) {
	r.heartbeats = append(r.heartbeats, n)
}

type fixedCount int

func (f fixedCount) Len() int { return int(f) }

type brokenReader struct{}

func (brokenReader) Closed(context.Context, time.Time) ([]models.Signal, error) {
	return nil, errors.New("db down")
}

func TestReporter_WindowMoves(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	n := &recordingNotifier{}

	now := time.Now().UTC().Add(-time.Hour)
	r := NewReporter(st, n, fixedCount(5), zap.NewNop())
	r.now = func() time.Time { return now }
	r.last = now

	id, err := st.Insert(ctx, storetest.StrongSignal(t, "BTC-USDT-SWAP"))
	require.NoError(t, err)
	pct, lev := 4.5, 45.0
	require.NoError(t, st.Update(ctx, id, models.Resolution{
		Status: models.StatusTP1Hit, ExitPrice: 115, OutcomeAt: time.Now().UTC(),
		PnLPercentage: &pct, PnLWithLeverage: &lev,
	}))

	now = time.Now().UTC().Add(time.Minute)
	sum, err := r.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Wins)

	// второй отчёт: окно сдвинулось, закрытий нет
	now = now.Add(time.Hour)
	sum, err = r.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	require.Len(t, n.sums, 2)

	r.Heartbeat(ctx)
	assert.Equal(t, []int{5}, n.heartbeats)
}

func TestReporter_ReadError(t *testing.T) {
	n := &recordingNotifier{}
	r := NewReporter(brokenReader{}, n, nil, zap.NewNop())
	last := r.last

	_, err := r.Report(context.Background())
	require.Error(t, err)
	assert.Empty(t, n.sums)
	assert.Equal(t, last, r.last)

	r.Heartbeat(context.Background())
	assert.Equal(t, []int{0}, n.heartbeats)
}

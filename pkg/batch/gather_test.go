package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGather_IsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	res := Gather(context.Background(), items, Options{Limit: 2}, func(_ context.Context, i int) (int, error) {
		switch i {
		case 2:
			return 0, errors.New("boom")
		case 4:
			panic("bad item")
		}
		return i * 10, nil
	})

	require.Len(t, res, len(items))
	assert.Equal(t, 10, res[0].Value)
	assert.EqualError(t, res[1].Err, "boom")
	assert.Equal(t, 30, res[2].Value)
	assert.ErrorContains(t, res[3].Err, "panic")
	assert.Equal(t, 50, res[4].Value)
	for i, r := range res {
		assert.Equal(t, i, r.Index)
	}
}

func TestGather_RespectsLimit(t *testing.T) {
	var cur, peak atomic.Int32
	items := make([]int, 20)
	Gather(context.Background(), items, Options{Limit: 3}, func(_ context.Context, _ int) (struct{}, error) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		cur.Add(-1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestGather_PerItemTimeout(t *testing.T) {
	res := Gather(context.Background(), []time.Duration{0, time.Second}, Options{Timeout: 20 * time.Millisecond},
		func(ctx context.Context, d time.Duration) (string, error) {
			select {
			case <-time.After(d):
				return "ok", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
	assert.NoError(t, res[0].Err)
	assert.Equal(t, "ok", res[0].Value)
	assert.ErrorIs(t, res[1].Err, context.DeadlineExceeded)
}

func TestGather_Empty(t *testing.T) {
	res := Gather(context.Background(), []int(nil), Options{}, func(context.Context, int) (int, error) { return 0, nil })
	assert.Empty(t, res)
}

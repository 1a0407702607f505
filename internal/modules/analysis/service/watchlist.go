package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TopSource - откуда берём самые волатильные символы.
type TopSource interface {
	TopVolatile(ctx context.Context, n int) ([]string, error)
}

// Watchlist - статический список плюс top-N, который обновляется раз в refresh.
type Watchlist struct {
	static  []string
	topN    int
	refresh time.Duration
	src     TopSource
	log     *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	top       []string
	fetchedAt time.Time
}

func NewWatchlist(static []string, topN int, refresh time.Duration, src TopSource, log *zap.Logger) *Watchlist {
	if refresh <= 0 {
		refresh = 6 * time.Hour
	}
	return &Watchlist{
		static:  append([]string(nil), static...),
		topN:    topN,
		refresh: refresh,
		src:     src,
		log:     log,
		now:     time.Now,
	}
}

// Symbols - текущий список без дублей, статические первыми.
// Если обновление top-N упало, остаётся прошлый список.
func (w *Watchlist) Symbols(ctx context.Context) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.topN > 0 && w.src != nil && (w.fetchedAt.IsZero() || w.now().Sub(w.fetchedAt) >= w.refresh) {
		top, err := w.src.TopVolatile(ctx, w.topN)
		if err != nil {
			w.log.Warn("watchlist refresh failed, keep previous", zap.Error(err), zap.Int("previous", len(w.top)))
		} else {
			w.top = top
			w.fetchedAt = w.now()
			w.log.Info("watchlist refreshed", zap.Int("top", len(top)))
		}
	}

	seen := make(map[string]struct{}, len(w.static)+len(w.top))
	out := make([]string, 0, len(w.static)+len(w.top))
	for _, list := range [][]string{w.static, w.top} {
		for _, s := range list {
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Len - размер списка без обращения к бирже.
func (w *Watchlist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.static)
	for _, s := range w.top {
		dup := false
		for _, st := range w.static {
			if st == s {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

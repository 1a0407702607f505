package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/outcome"
)

type ClosedReader interface {
	Closed(ctx context.Context, since time.Time) ([]models.Signal, error)
}

type Notifier interface {
	Report(ctx context.Context, title string, sum outcome.Summary)
	Heartbeat(ctx context.Context, symbols int)
}

type SymbolCounter interface {
	Len() int
}

// Reporter - периодическая сводка по закрытым сигналам и heartbeat.
type Reporter struct {
	st      ClosedReader
	n       Notifier
	symbols SymbolCounter
	log     *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewReporter(st ClosedReader, n Notifier, symbols SymbolCounter, log *zap.Logger) *Reporter {
	r := &Reporter{
		st:      st,
		n:       n,
		symbols: symbols,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	r.last = r.now()
	return r
}

// Report шлёт сводку по сигналам, закрытым с прошлого отчёта.
// При ошибке чтения окно не сдвигается.
func (r *Reporter) Report(ctx context.Context) (outcome.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	closed, err := r.st.Closed(ctx, r.last)
	if err != nil {
		return outcome.Summary{}, fmt.Errorf("report: read closed: %w", err)
	}
	sum := outcome.Stats(closed)
	title := fmt.Sprintf("Итоги с %s UTC", r.last.Format("2006-01-02 15:04"))
	r.n.Report(ctx, title, sum)
	r.log.Info("report sent",
		zap.Int("closed", sum.Total),
		zap.Int("wins", sum.Wins),
		zap.Float64("net_pnl", sum.NetPnL),
	)
	r.last = now
	return sum, nil
}

func (r *Reporter) Heartbeat(ctx context.Context) {
	n := 0
	if r.symbols != nil {
		n = r.symbols.Len()
	}
	r.n.Heartbeat(ctx, n)
}

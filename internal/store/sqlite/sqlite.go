package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol            TEXT    NOT NULL,
	timeframe         TEXT    NOT NULL,
	created_at        INTEGER NOT NULL,
	kline_open_time   INTEGER NOT NULL,
	last_price        REAL    NOT NULL,
	indicators        TEXT    NOT NULL,
	trend             TEXT    NOT NULL,
	entry_price       REAL,
	stop_loss         REAL,
	take_profit_1     REAL,
	take_profit_2     REAL,
	take_profit_3     REAL,
	status            TEXT    NOT NULL DEFAULT 'ACTIVE',
	exit_price        REAL,
	outcome_at        INTEGER,
	pnl_percentage    REAL,
	pnl_with_leverage REAL
);
CREATE INDEX IF NOT EXISTS idx_signals_status_symbol ON signals(status, symbol);
CREATE INDEX IF NOT EXISTS idx_signals_outcome_at ON signals(outcome_at);
`

const columns = `id, symbol, timeframe, created_at, kline_open_time, last_price, indicators, trend,
	entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3,
	status, exit_price, outcome_at, pnl_percentage, pnl_with_leverage`

// Store - сигналы в файле SQLite. Одно соединение на запись, WAL.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite create schema: %w", err)
	}
	log.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Insert(ctx context.Context, sig *models.Signal) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.Insert: %w", err)
		}
	}()
	if err = store.ValidateInsert(sig); err != nil {
		return 0, err
	}
	if id, err = s.insert(ctx, sig); err != nil {
		return 0, err
	}
	sig.ID = id
	return id, nil
}

// InsertResolved - исторический сигнал сразу со статусом и PnL, один INSERT.
func (s *Store) InsertResolved(ctx context.Context, sig *models.Signal, res models.Resolution) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.InsertResolved: %w", err)
		}
	}()
	row, err := store.Resolved(sig, res)
	if err != nil {
		return 0, err
	}
	if id, err = s.insert(ctx, &row); err != nil {
		return 0, err
	}
	sig.ID = id
	return id, nil
}

func (s *Store) insert(ctx context.Context, sig *models.Signal) (int64, error) {
	r, err := store.NewRecord(sig)
	if err != nil {
		return 0, err
	}
	var outcomeMs *int64
	if r.OutcomeAt != nil {
		ms := r.OutcomeAt.UTC().UnixMilli()
		outcomeMs = &ms
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (symbol, timeframe, created_at, kline_open_time, last_price, indicators, trend,
			entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3,
			status, exit_price, outcome_at, pnl_percentage, pnl_with_leverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Symbol, r.Timeframe, r.CreatedAt.UnixMilli(), r.KlineOpenTime.UnixMilli(), r.LastPrice, string(r.Indicators), r.Trend,
		r.Entry, r.StopLoss, r.TP1, r.TP2, r.TP3,
		r.Status, r.ExitPrice, outcomeMs, r.PnLPercentage, r.PnLWithLeverage,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) QueryActive(ctx context.Context, symbol string) ([]models.Signal, error) {
	out, err := s.active(ctx, symbol, false)
	if err != nil {
		return nil, fmt.Errorf("sqlite.QueryActive: %w", err)
	}
	return out, nil
}

func (s *Store) QueryTradable(ctx context.Context, symbol string) ([]models.Signal, error) {
	out, err := s.active(ctx, symbol, true)
	if err != nil {
		return nil, fmt.Errorf("sqlite.QueryTradable: %w", err)
	}
	return out, nil
}

func (s *Store) active(ctx context.Context, symbol string, tradable bool) ([]models.Signal, error) {
	q := `SELECT ` + columns + ` FROM signals WHERE status = 'ACTIVE'`
	if tradable {
		q += ` AND entry_price IS NOT NULL`
	}
	args := []any{}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY id`
	return s.query(ctx, q, args...)
}

func (s *Store) Closed(ctx context.Context, since time.Time) ([]models.Signal, error) {
	out, err := s.query(ctx, `SELECT `+columns+` FROM signals
		WHERE status != 'ACTIVE' AND outcome_at IS NOT NULL AND outcome_at >= ?
		ORDER BY outcome_at, id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite.Closed: %w", err)
	}
	return out, nil
}

// Update - одна UPDATE-команда с условием status='ACTIVE'.
func (s *Store) Update(ctx context.Context, id int64, res models.Resolution) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("sqlite.Update(%d): %w", id, err)
		}
	}()
	if err = res.Validate(); err != nil {
		return err
	}

	out, err := s.db.ExecContext(ctx, `
		UPDATE signals
		SET status = ?, exit_price = ?, outcome_at = ?, pnl_percentage = ?, pnl_with_leverage = ?
		WHERE id = ? AND status = 'ACTIVE'`,
		string(res.Status), res.ExitPrice, res.OutcomeAt.UTC().UnixMilli(), res.PnLPercentage, res.PnLWithLeverage, id,
	)
	if err != nil {
		return err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM signals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrAlreadyResolved
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Signal, 0)
	for rows.Next() {
		var (
			r                  store.Record
			createdMs, klineMs int64
			outcomeMs          *int64
			indicators         string
		)
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.Timeframe, &createdMs, &klineMs, &r.LastPrice, &indicators, &r.Trend,
			&r.Entry, &r.StopLoss, &r.TP1, &r.TP2, &r.TP3,
			&r.Status, &r.ExitPrice, &outcomeMs, &r.PnLPercentage, &r.PnLWithLeverage,
		); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		r.KlineOpenTime = time.UnixMilli(klineMs).UTC()
		if outcomeMs != nil {
			at := time.UnixMilli(*outcomeMs).UTC()
			r.OutcomeAt = &at
		}
		r.Indicators = []byte(indicators)

		sig, err := r.Signal()
		if err != nil {
			// битая строка не должна ломать весь цикл
			s.log.Error("skip malformed signal row", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

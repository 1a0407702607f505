package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"trend_bot/internal/models"
	"trend_bot/internal/store"
	"trend_bot/pkg/db"
)

const Schema = `
CREATE TABLE IF NOT EXISTS signals (
	id                BIGSERIAL PRIMARY KEY,
	symbol            TEXT             NOT NULL,
	timeframe         TEXT             NOT NULL,
	created_at        TIMESTAMPTZ      NOT NULL,
	kline_open_time   TIMESTAMPTZ      NOT NULL,
	last_price        DOUBLE PRECISION NOT NULL,
	indicators        JSONB            NOT NULL,
	trend             TEXT             NOT NULL,
	entry_price       DOUBLE PRECISION,
	stop_loss         DOUBLE PRECISION,
	take_profit_1     DOUBLE PRECISION,
	take_profit_2     DOUBLE PRECISION,
	take_profit_3     DOUBLE PRECISION,
	status            TEXT             NOT NULL DEFAULT 'ACTIVE',
	exit_price        DOUBLE PRECISION,
	outcome_at        TIMESTAMPTZ,
	pnl_percentage    DOUBLE PRECISION,
	pnl_with_leverage DOUBLE PRECISION,
	CONSTRAINT signals_levels_all_or_none CHECK (
		(entry_price IS NULL AND stop_loss IS NULL AND take_profit_1 IS NULL AND take_profit_2 IS NULL AND take_profit_3 IS NULL)
		OR (entry_price IS NOT NULL AND stop_loss IS NOT NULL AND take_profit_1 IS NOT NULL AND take_profit_2 IS NOT NULL AND take_profit_3 IS NOT NULL)
	)
);
CREATE INDEX IF NOT EXISTS idx_signals_status_symbol ON signals(status, symbol);
CREATE INDEX IF NOT EXISTS idx_signals_outcome_at ON signals(outcome_at);
`

const columns = `id, symbol, timeframe, created_at, kline_open_time, last_price, indicators, trend,
	entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3,
	status, exit_price, outcome_at, pnl_percentage, pnl_with_leverage`

// Signals - хранилище сигналов в Postgres.
type Signals struct {
	db  *db.PgTxManager
	log *zap.Logger
}

func New(db *db.PgTxManager, log *zap.Logger) *Signals {
	return &Signals{db: db, log: log}
}

func (s *Signals) Migrate(ctx context.Context) error {
	if _, err := s.db.Conn().Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pg.Migrate: %w", err)
	}
	return nil
}

func (s *Signals) Close() error {
	s.db.Close()
	return nil
}

// Insert in db
func (s *Signals) Insert(ctx context.Context, sig *models.Signal) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Insert: %w", err)
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

// InsertResolved - исторический сигнал сразу закрытым, одной командой.
func (s *Signals) InsertResolved(ctx context.Context, sig *models.Signal, res models.Resolution) (id int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.InsertResolved: %w", err)
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

func (s *Signals) insert(ctx context.Context, sig *models.Signal) (id int64, err error) {
	r, err := store.NewRecord(sig)
	if err != nil {
		return 0, err
	}
	err = s.db.Conn().QueryRow(ctx, `
		INSERT INTO signals (symbol, timeframe, created_at, kline_open_time, last_price, indicators, trend,
			entry_price, stop_loss, take_profit_1, take_profit_2, take_profit_3,
			status, exit_price, outcome_at, pnl_percentage, pnl_with_leverage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		r.Symbol, r.Timeframe, r.CreatedAt, r.KlineOpenTime, r.LastPrice, r.Indicators, r.Trend,
		r.Entry, r.StopLoss, r.TP1, r.TP2, r.TP3,
		r.Status, r.ExitPrice, r.OutcomeAt, r.PnLPercentage, r.PnLWithLeverage,
	).Scan(&id)
	return id, err
}

func (s *Signals) QueryActive(ctx context.Context, symbol string) (out []models.Signal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.QueryActive: %w", err)
		}
	}()
	return s.active(ctx, symbol, false)
}

func (s *Signals) QueryTradable(ctx context.Context, symbol string) (out []models.Signal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.QueryTradable: %w", err)
		}
	}()
	return s.active(ctx, symbol, true)
}

func (s *Signals) active(ctx context.Context, symbol string, tradable bool) ([]models.Signal, error) {
	q := `SELECT ` + columns + ` FROM signals WHERE status = 'ACTIVE'`
	if tradable {
		q += ` AND entry_price IS NOT NULL`
	}
	args := []any{}
	if symbol != "" {
		q += ` AND symbol = $1`
		args = append(args, symbol)
	}
	return s.query(ctx, q+` ORDER BY id`, args...)
}

func (s *Signals) Closed(ctx context.Context, since time.Time) (out []models.Signal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Closed: %w", err)
		}
	}()
	return s.query(ctx, `SELECT `+columns+` FROM signals
		WHERE status <> 'ACTIVE' AND outcome_at >= $1
		ORDER BY outcome_at, id`, since.UTC())
}

// Update - закрытие сигнала в одной транзакции, только из ACTIVE.
func (s *Signals) Update(ctx context.Context, id int64, res models.Resolution) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Update(%d): %w", id, err)
		}
	}()
	if err = res.Validate(); err != nil {
		return err
	}

	var outcome error
	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctxTx, `
			UPDATE signals
			SET status = $1, exit_price = $2, outcome_at = $3, pnl_percentage = $4, pnl_with_leverage = $5
			WHERE id = $6 AND status = 'ACTIVE'`,
			string(res.Status), res.ExitPrice, res.OutcomeAt.UTC(), res.PnLPercentage, res.PnLWithLeverage, id,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var status string
		err = tx.QueryRow(ctxTx, `SELECT status FROM signals WHERE id = $1`, id).Scan(&status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			outcome = store.ErrNotFound
		case err != nil:
			return err
		default:
			outcome = store.ErrAlreadyResolved
		}
		return nil
	})
	if err != nil {
		return err
	}
	return outcome
}

func (s *Signals) query(ctx context.Context, q string, args ...any) ([]models.Signal, error) {
	rows, err := s.db.Conn().Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Signal, 0)
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(
			&r.ID, &r.Symbol, &r.Timeframe, &r.CreatedAt, &r.KlineOpenTime, &r.LastPrice, &r.Indicators, &r.Trend,
			&r.Entry, &r.StopLoss, &r.TP1, &r.TP2, &r.TP3,
			&r.Status, &r.ExitPrice, &r.OutcomeAt, &r.PnLPercentage, &r.PnLWithLeverage,
		); err != nil {
			return nil, err
		}
		sig, err := r.Signal()
		if err != nil {
			s.log.Error("skip malformed signal row", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

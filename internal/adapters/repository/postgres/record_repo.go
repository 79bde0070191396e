package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"ohlcvflow/internal/core/domain"
	"ohlcvflow/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ port.RecordStore = (*RecordRepository)(nil)

// Prices are TEXT so the exchange's decimal spelling survives a round trip.
// NUMERIC would normalize exponents.
const schema = `
CREATE TABLE IF NOT EXISTS ohlcv_records (
	id          BIGSERIAL PRIMARY KEY,
	exchange    TEXT        NOT NULL,
	symbol      TEXT        NOT NULL,
	bar         TEXT        NOT NULL,
	open_time   BIGINT      NOT NULL,
	close_time  BIGINT      NOT NULL,
	open        TEXT        NOT NULL,
	high        TEXT        NOT NULL,
	low         TEXT        NOT NULL,
	close       TEXT        NOT NULL,
	volume      TEXT        NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (close_time >= open_time)
);

CREATE INDEX IF NOT EXISTS ohlcv_records_exchange_symbol_idx
	ON ohlcv_records (exchange, symbol, open_time DESC);
`

type RecordRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewRecordRepository(db *pgxpool.Pool, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the records table and its index if missing.
func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *RecordRepository) Ping(ctx context.Context) string {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Sprintf("down: %v", err)
	}
	return "up"
}

// Append inserts one record. Rows are never updated; a repeated natural key
// is a new row.
func (r *RecordRepository) Append(ctx context.Context, record domain.Record) error {
	query := `
		INSERT INTO ohlcv_records (exchange, symbol, bar, open_time, close_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		string(record.Exchange),
		record.Symbol,
		record.Interval,
		record.OpenTime,
		record.CloseTime,
		record.Open,
		record.High,
		record.Low,
		record.Close,
		record.Volume,
	)
	if err != nil {
		r.logger.Error("failed to insert record", slog.Any("error", err))
		return err
	}

	return nil
}

type recordRow struct {
	Exchange  string `db:"exchange"`
	Symbol    string `db:"symbol"`
	Interval  string `db:"bar"`
	OpenTime  int64  `db:"open_time"`
	CloseTime int64  `db:"close_time"`
	Open      string `db:"open"`
	High      string `db:"high"`
	Low       string `db:"low"`
	Close     string `db:"close"`
	Volume    string `db:"volume"`
}

// FindMany returns the exchange's matching records in insertion order, or
// the filter.Limit newest ones when a limit is set.
func (r *RecordRepository) FindMany(ctx context.Context, exchange domain.Exchange, filter domain.Filter) ([]domain.Record, error) {
	query := `
		SELECT exchange, symbol, bar, open_time, close_time, open, high, low, close, volume
		FROM ohlcv_records
		WHERE exchange = $1 AND ($2 = '' OR symbol = $2)
		ORDER BY id
	`
	args := []any{string(exchange), filter.Symbol}

	if filter.Limit > 0 {
		query = `
			SELECT exchange, symbol, bar, open_time, close_time, open, high, low, close, volume
			FROM ohlcv_records
			WHERE exchange = $1 AND ($2 = '' OR symbol = $2)
			ORDER BY open_time DESC, id
			LIMIT $3
		`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[recordRow])
	if err != nil {
		r.logger.Error("failed to scan records", slog.Any("error", err))
		return nil, err
	}

	records := make([]domain.Record, len(found))
	for i, row := range found {
		records[i] = domain.Record{
			Exchange:  domain.Exchange(row.Exchange),
			Symbol:    row.Symbol,
			Interval:  row.Interval,
			OpenTime:  row.OpenTime,
			CloseTime: row.CloseTime,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		}
	}

	return records, nil
}

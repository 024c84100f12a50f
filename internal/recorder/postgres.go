package recorder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS signal_log (
    id           BIGSERIAL PRIMARY KEY,
    signal_id    TEXT,
    instrument   TEXT NOT NULL,
    timeframe    TEXT,
    price        DOUBLE PRECISION,
    rsi          DOUBLE PRECISION,
    macd         DOUBLE PRECISION,
    macd_signal  DOUBLE PRECISION,
    volume       DOUBLE PRECISION,
    volume_spike BOOLEAN,
    ts           TIMESTAMPTZ NOT NULL,
    signal_type  TEXT NOT NULL,
    take_profits DOUBLE PRECISION[],
    stop_loss    DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_signal_log_ts ON signal_log(ts);
`

// PostgresRecorder persists the signal log to PostgreSQL.
type PostgresRecorder struct {
	db *pgxpool.Pool
}

// NewPostgresRecorder connects to databaseURL and creates the signal_log table.
func NewPostgresRecorder(ctx context.Context, databaseURL string) (*PostgresRecorder, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("[INFO] postgres recorder connected")
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) AppendRow(ctx context.Context, row AuditRow) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
        INSERT INTO signal_log (
            signal_id, instrument, timeframe, price,
            rsi, macd, macd_signal, volume, volume_spike,
            ts, signal_type, take_profits, stop_loss
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		row.SignalID, row.Instrument, row.Timeframe, row.Price,
		row.RSI, row.MACD, row.MACDSignal, row.Volume, row.VolumeSpike,
		row.Timestamp, string(row.SignalType), row.TakeProfits, row.StopLoss,
	)
	if err != nil {
		return fault.IO("append audit row", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]AuditRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT signal_id, instrument, timeframe, price,
               rsi, macd, macd_signal, volume, volume_spike,
               ts, signal_type, take_profits, stop_loss
        FROM signal_log
        ORDER BY ts DESC, id DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fault.IO("query audit rows", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			row AuditRow
			typ string
		)
		if err := rows.Scan(&row.SignalID, &row.Instrument, &row.Timeframe, &row.Price,
			&row.RSI, &row.MACD, &row.MACDSignal, &row.Volume, &row.VolumeSpike,
			&row.Timestamp, &typ, &row.TakeProfits, &row.StopLoss); err != nil {
			return nil, fault.IO("scan audit row", err)
		}
		row.SignalType = model.SignalType(typ)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.IO("query audit rows", err)
	}
	return out, nil
}

func (r *PostgresRecorder) Close() error {
	log.Println("[INFO] closing postgres recorder")
	r.db.Close()
	return nil
}

package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"SignalSentinel/internal/fault"
	"SignalSentinel/internal/model"
)

// SQLiteRecorder persists the signal log to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signal_log (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id    TEXT,
			instrument   TEXT NOT NULL,
			timeframe    TEXT,
			price        REAL,
			rsi          REAL,
			macd         REAL,
			macd_signal  REAL,
			volume       REAL,
			volume_spike INTEGER,
			timestamp    INTEGER NOT NULL,
			signal_type  TEXT NOT NULL,
			take_profits TEXT,
			stop_loss    REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_log_ts ON signal_log(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_log_instrument ON signal_log(instrument)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) AppendRow(ctx context.Context, row AuditRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO signal_log
		(signal_id, instrument, timeframe, price, rsi, macd, macd_signal,
		 volume, volume_spike, timestamp, signal_type, take_profits, stop_loss)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		row.SignalID, row.Instrument, row.Timeframe, row.Price,
		row.RSI, row.MACD, row.MACDSignal, row.Volume, row.VolumeSpike,
		row.Timestamp.UnixMilli(), string(row.SignalType),
		joinLadder(row.TakeProfits), row.StopLoss,
	)
	if err != nil {
		return fault.IO("append audit row", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]AuditRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		signal_id, instrument, timeframe, price, rsi, macd, macd_signal,
		volume, volume_spike, timestamp, signal_type, take_profits, stop_loss
		FROM signal_log ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fault.IO("query audit rows", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			row    AuditRow
			ts     int64
			typ    string
			ladder string
		)
		if err := rows.Scan(&row.SignalID, &row.Instrument, &row.Timeframe, &row.Price,
			&row.RSI, &row.MACD, &row.MACDSignal, &row.Volume, &row.VolumeSpike,
			&ts, &typ, &ladder, &row.StopLoss); err != nil {
			return nil, fault.IO("scan audit row", err)
		}
		row.Timestamp = time.UnixMilli(ts).UTC()
		row.SignalType = model.SignalType(typ)
		row.TakeProfits = splitLadder(ladder)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.IO("query audit rows", err)
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"atrader/internal/backtest"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database. The run's
// config, summary, equity curve, daily logs, and strategy definition are
// stored as JSON documents; trades get their own table so they can be queried
// individually.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_results (
	id           TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	total_return REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	config       TEXT NOT NULL,
	summary      TEXT NOT NULL,
	equity_curve TEXT NOT NULL,
	daily_logs   TEXT NOT NULL,
	lot_size     TEXT NOT NULL,
	data_quality TEXT NOT NULL,
	strategy_def TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_trades (
	result_id TEXT NOT NULL REFERENCES backtest_results(id),
	seq       INTEGER NOT NULL,
	trade     TEXT NOT NULL,
	PRIMARY KEY (result_id, seq)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveResult stores a completed run and returns its generated ID.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *backtest.Result) (string, error) {
	id := uuid.NewString()

	docs := make([]string, 0, 7)
	for _, v := range []any{res.Config, res.Summary, res.EquityCurve, res.DailyLogs, res.LotSize, res.DataQuality, res.Strategy} {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding result: %w", err)
		}
		docs = append(docs, string(data))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	strategyName := ""
	if res.Strategy != nil {
		strategyName = res.Strategy.Name
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_results
			(id, symbol, strategy, created_at, total_return, total_trades,
			 config, summary, equity_curve, daily_logs, lot_size, data_quality, strategy_def)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.Config.Symbol, strategyName, time.Now().UTC(),
		res.Summary.TotalReturnPct, res.Summary.TotalTrades,
		docs[0], docs[1], docs[2], docs[3], docs[4], docs[5], docs[6])
	if err != nil {
		return "", fmt.Errorf("inserting result: %w", err)
	}

	for i, trade := range res.Trades {
		data, err := json.Marshal(trade)
		if err != nil {
			return "", fmt.Errorf("encoding trade %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO backtest_trades (result_id, seq, trade) VALUES (?, ?, ?)`,
			id, i, string(data)); err != nil {
			return "", fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetResult retrieves one stored run by ID.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*backtest.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT config, summary, equity_curve, daily_logs, lot_size, data_quality, strategy_def
		FROM backtest_results WHERE id = ?`, id)

	var config, summary, curve, logs, lotSize, quality, strategyDef string
	if err := row.Scan(&config, &summary, &curve, &logs, &lotSize, &quality, &strategyDef); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("result %s not found", id)
		}
		return nil, err
	}

	res := &backtest.Result{}
	for _, doc := range []struct {
		data string
		dst  any
	}{
		{config, &res.Config},
		{summary, &res.Summary},
		{curve, &res.EquityCurve},
		{logs, &res.DailyLogs},
		{lotSize, &res.LotSize},
		{quality, &res.DataQuality},
		{strategyDef, &res.Strategy},
	} {
		if err := json.Unmarshal([]byte(doc.data), doc.dst); err != nil {
			return nil, fmt.Errorf("decoding result %s: %w", id, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT trade FROM backtest_trades WHERE result_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var trade backtest.DetailedTrade
		if err := json.Unmarshal([]byte(data), &trade); err != nil {
			return nil, fmt.Errorf("decoding trade of result %s: %w", id, err)
		}
		res.Trades = append(res.Trades, trade)
	}
	return res, rows.Err()
}

// ListResults returns metadata for stored runs, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]ResultMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, strategy, created_at, total_return, total_trades
		FROM backtest_results ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultMeta
	for rows.Next() {
		var m ResultMeta
		if err := rows.Scan(&m.ID, &m.Symbol, &m.Strategy, &m.CreatedAt, &m.TotalReturnPct, &m.TotalTrades); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteResult removes one stored run and its trades.
func (s *SQLiteStore) DeleteResult(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_trades WHERE result_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM backtest_results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("result %s not found", id)
	}
	return tx.Commit()
}

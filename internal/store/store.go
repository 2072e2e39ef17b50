// Package store persists and retrieves domain objects: OHLCV bars in Parquet
// or CSV files, and backtest results in SQLite.
package store

import (
	"context"
	"time"

	"atrader/internal/backtest"
	"atrader/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in storage.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ResultMeta is the listing row for a stored backtest result.
type ResultMeta struct {
	ID             string
	Symbol         string
	Strategy       string
	CreatedAt      time.Time
	TotalReturnPct float64
	TotalTrades    int
}

// ResultStore persists and retrieves backtest results.
type ResultStore interface {
	// SaveResult stores a completed run and returns its generated ID.
	SaveResult(ctx context.Context, res *backtest.Result) (string, error)

	// GetResult retrieves one stored run by ID.
	GetResult(ctx context.Context, id string) (*backtest.Result, error)

	// ListResults returns metadata for stored runs, newest first.
	ListResults(ctx context.Context, limit int) ([]ResultMeta, error)

	// DeleteResult removes one stored run and its trades.
	DeleteResult(ctx context.Context, id string) error
}

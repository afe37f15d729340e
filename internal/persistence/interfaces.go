// Package persistence defines the storage contracts for backtest runs.
// Implementations live in subpackages; callers depend only on these
// interfaces so runs can be kept in Postgres or skipped entirely.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/alphaforge/smartmoney/internal/backtest"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the lightweight listing row for stored runs.
type RunSummary struct {
	RunID            string    `db:"run_id" json:"run_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	StartDate        time.Time `db:"start_date" json:"start_date"`
	EndDate          time.Time `db:"end_date" json:"end_date"`
	CAGR             float64   `db:"cagr" json:"cagr"`
	Sharpe           float64   `db:"sharpe" json:"sharpe"`
	MaxDrawdown      float64   `db:"max_drawdown" json:"max_drawdown"`
	ValidationPassed bool      `db:"validation_passed" json:"validation_passed"`
}

// TimeRange bounds a listing query, inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// RunStore persists full backtest results and serves them back by ID.
type RunStore interface {
	// SaveRun stores a completed result. Saving the same run ID twice
	// replaces the stored payload.
	SaveRun(ctx context.Context, result *backtest.Result) error

	// GetRun returns the full stored result, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*backtest.Result, error)

	// ListRuns returns summaries of runs created within the range, newest
	// first.
	ListRuns(ctx context.Context, tr TimeRange) ([]RunSummary, error)

	// Close releases the underlying connection.
	Close() error
}

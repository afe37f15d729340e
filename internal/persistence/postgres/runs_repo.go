// Package postgres implements persistence.RunStore on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/backtest"
	"github.com/alphaforge/smartmoney/internal/persistence"
)

const defaultTimeout = 10 * time.Second

// schema is applied on connect. The full result is stored as a JSONB payload;
// the scalar columns exist only so listings and dashboards can query without
// unpacking the payload.
const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id            TEXT PRIMARY KEY,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	start_date        TIMESTAMPTZ NOT NULL,
	end_date          TIMESTAMPTZ NOT NULL,
	cagr              DOUBLE PRECISION NOT NULL,
	sharpe            DOUBLE PRECISION NOT NULL,
	max_drawdown      DOUBLE PRECISION NOT NULL,
	validation_passed BOOLEAN NOT NULL,
	payload           JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs (created_at DESC);
`

// runStore implements persistence.RunStore for PostgreSQL.
type runStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Connect opens the database, verifies connectivity, and ensures the schema.
func Connect(ctx context.Context, dsn string) (persistence.RunStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("postgres run store connected")
	return &runStore{db: db, timeout: defaultTimeout}, nil
}

func (s *runStore) SaveRun(ctx context.Context, result *backtest.Result) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if result == nil || result.RunID == "" {
		return fmt.Errorf("result must have a run ID")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run payload: %w", err)
	}

	query := `
		INSERT INTO backtest_runs
		(run_id, start_date, end_date, cagr, sharpe, max_drawdown, validation_passed, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			start_date        = EXCLUDED.start_date,
			end_date          = EXCLUDED.end_date,
			cagr              = EXCLUDED.cagr,
			sharpe            = EXCLUDED.sharpe,
			max_drawdown      = EXCLUDED.max_drawdown,
			validation_passed = EXCLUDED.validation_passed,
			payload           = EXCLUDED.payload`

	_, err = s.db.ExecContext(ctx, query,
		result.RunID, result.StartDate, result.EndDate,
		result.Metrics.CAGR, result.Metrics.Sharpe, result.Metrics.MaxDrawdown,
		result.ValidationPassed, payload)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}

	return nil
}

func (s *runStore) GetRun(ctx context.Context, runID string) (*backtest.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT payload FROM backtest_runs WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result backtest.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

func (s *runStore) ListRuns(ctx context.Context, tr persistence.TimeRange) ([]persistence.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT run_id, created_at, start_date, end_date, cagr, sharpe, max_drawdown, validation_passed
		FROM backtest_runs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC`

	var summaries []persistence.RunSummary
	if err := s.db.SelectContext(ctx, &summaries, query, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return summaries, nil
}

func (s *runStore) Close() error {
	return s.db.Close()
}

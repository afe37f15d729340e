package backtest

import (
	"time"
)

// HoldingRecord is one position in a rebalance-date holdings snapshot.
type HoldingRecord struct {
	Date           time.Time `json:"date"`
	Symbol         string    `json:"symbol"`
	Sector         string    `json:"sector"`
	Weight         float64   `json:"weight"`
	CompositeScore float64   `json:"composite_score"`
	Rank           int       `json:"rank"`
}

// SkippedPeriod records a rebalance date that was skipped with its reason.
// Previous weights carried forward unchanged across skipped dates.
type SkippedPeriod struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// Result is the immutable aggregate of one backtest run. It is created once
// at the end of Run and never mutated; the field set is the stable interface
// the reporting layer depends on.
type Result struct {
	RunID     string    `json:"run_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Returns           ReturnSeries        `json:"returns"`
	CumulativeReturns []float64           `json:"cumulative_returns"`
	Drawdowns         []float64           `json:"drawdowns"`
	WeightsHistory    []WeightsRecord     `json:"weights_history"`
	HoldingsHistory   []HoldingRecord     `json:"holdings_history"`
	SkippedPeriods    []SkippedPeriod     `json:"skipped_periods"`
	Metrics           *PerformanceMetrics `json:"metrics"`
	StressSuite       *StressTestSuite    `json:"stress_suite,omitempty"`

	ValidationPassed bool     `json:"validation_passed"`
	ValidationNotes  []string `json:"validation_notes"`
}

package backtest

import "errors"

var (
	// ErrNoRebalances means every rebalance date failed; a run with no
	// weights history at all is unrecoverable.
	ErrNoRebalances = errors.New("no rebalance date produced a portfolio")

	// ErrInsufficientData means a computation was refused for lack of
	// observations.
	ErrInsufficientData = errors.New("insufficient data")
)

package data

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alphaforge/smartmoney/internal/config"
)

// PriceMatrix is a dense date x symbol matrix of adjusted close prices.
// Missing observations are NaN. The matrix is read-only once built; the
// backtest loop never mutates it.
type PriceMatrix struct {
	dates   []time.Time
	symbols []string
	cols    map[string]int
	prices  [][]float64 // prices[dateIdx][colIdx]
}

// NewPriceMatrix builds a matrix from an ascending trading calendar and one
// price row per date. Row lengths must match the symbol count.
func NewPriceMatrix(dates []time.Time, symbols []string, prices [][]float64) (*PriceMatrix, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("price matrix has %d dates but %d rows", len(dates), len(prices))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("price matrix dates not strictly ascending at index %d", i)
		}
	}

	cols := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		if _, dup := cols[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s in price matrix", sym)
		}
		cols[sym] = i
	}

	for i, row := range prices {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("price row %d has %d columns, want %d", i, len(row), len(symbols))
		}
	}

	return &PriceMatrix{dates: dates, symbols: symbols, cols: cols, prices: prices}, nil
}

// Dates returns the trading calendar.
func (m *PriceMatrix) Dates() []time.Time { return m.dates }

// Symbols returns the column order.
func (m *PriceMatrix) Symbols() []string { return m.symbols }

// HasSymbol reports whether the symbol has a column.
func (m *PriceMatrix) HasSymbol(symbol string) bool {
	_, ok := m.cols[symbol]
	return ok
}

// Price returns the close for a date index and symbol, NaN when missing.
func (m *PriceMatrix) Price(dateIdx int, symbol string) float64 {
	col, ok := m.cols[symbol]
	if !ok || dateIdx < 0 || dateIdx >= len(m.dates) {
		return math.NaN()
	}
	return m.prices[dateIdx][col]
}

// DailyReturn returns the simple return into dateIdx, NaN when either close
// is missing or non-positive.
func (m *PriceMatrix) DailyReturn(dateIdx int, symbol string) float64 {
	if dateIdx <= 0 {
		return math.NaN()
	}
	prev := m.Price(dateIdx-1, symbol)
	cur := m.Price(dateIdx, symbol)
	if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
		return math.NaN()
	}
	return cur/prev - 1
}

// ReturnHistory returns up to lookback daily returns ending at endIdx
// (inclusive), skipping days where the return is undefined. The result may be
// shorter than lookback for symbols with sparse history.
func (m *PriceMatrix) ReturnHistory(symbol string, endIdx, lookback int) []float64 {
	if endIdx >= len(m.dates) {
		endIdx = len(m.dates) - 1
	}
	start := endIdx - lookback + 1
	if start < 1 {
		start = 1
	}

	out := make([]float64, 0, lookback)
	for i := start; i <= endIdx; i++ {
		r := m.DailyReturn(i, symbol)
		if !math.IsNaN(r) {
			out = append(out, r)
		}
	}
	return out
}

// IndexOnOrBefore returns the index of the latest trading day at or before t,
// or -1 when t precedes the calendar.
func (m *PriceMatrix) IndexOnOrBefore(t time.Time) int {
	i := sort.Search(len(m.dates), func(i int) bool { return m.dates[i].After(t) })
	return i - 1
}

// RebalanceIndices derives rebalancing dates from the trading calendar:
// the last trading day of each quarter, of each month, or every Friday.
func (m *PriceMatrix) RebalanceIndices(freq config.RebalanceFrequency) []int {
	var out []int
	for i, d := range m.dates {
		switch freq {
		case config.Weekly:
			if d.Weekday() == time.Friday {
				out = append(out, i)
			}
		case config.Monthly:
			if i == len(m.dates)-1 || m.dates[i+1].Month() != d.Month() {
				out = append(out, i)
			}
		default: // quarterly
			if i == len(m.dates)-1 || quarterOf(m.dates[i+1]) != quarterOf(d) ||
				m.dates[i+1].Year() != d.Year() {
				out = append(out, i)
			}
		}
	}
	return out
}

func quarterOf(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}

package universe

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
)

// ErrEmptyUniverse signals that the look-ahead filter left no usable rows for
// an as-of date. Recoverable at the per-rebalance level: the caller skips the
// period instead of proceeding with zero rows.
var ErrEmptyUniverse = errors.New("universe empty after publication-date filter")

// Security is one eligible ticker in a snapshot, carrying the most recent
// publicly available fundamentals and the per-rebalance score columns.
type Security struct {
	Symbol          string
	Sector          string
	MarketCap       float64
	AvgDollarVolume float64
	Fundamentals    data.FundamentalsRow
	Scores          map[string]float64
}

// Snapshot is the ephemeral point-in-time universe, rebuilt at every
// rebalance date. Score columns live and die with the snapshot so no state
// leaks across periods.
type Snapshot struct {
	AsOf       time.Time
	Securities []*Security
}

// Len returns the number of securities.
func (s *Snapshot) Len() int { return len(s.Securities) }

// Symbols returns the tickers in snapshot order.
func (s *Snapshot) Symbols() []string {
	out := make([]string, len(s.Securities))
	for i, sec := range s.Securities {
		out[i] = sec.Symbol
	}
	return out
}

// Builder assembles point-in-time snapshots under the publication-lag model.
type Builder struct {
	cfg           *config.Config
	fundamentals  *data.FundamentalsSet
	assumptionLog bool
}

// NewBuilder creates a builder over an immutable fundamentals set.
func NewBuilder(cfg *config.Config, fundamentals *data.FundamentalsSet) *Builder {
	return &Builder{cfg: cfg, fundamentals: fundamentals}
}

// Snapshot builds the universe as of the given date, using for each symbol
// the most recent fiscal year whose modeled publication date is at or before
// asOf. Symbols with no publicly available year are dropped.
func (b *Builder) Snapshot(asOf time.Time) (*Snapshot, error) {
	if !b.assumptionLog {
		// Fiscal year end defaults to Dec 31; non-calendar fiscal years are
		// not resolved. This reduces look-ahead bias, it does not eliminate it.
		log.Info().Int("fy_end_month", b.cfg.FiscalYearEndMonth).
			Int("fy_end_day", b.cfg.FiscalYearEndDay).
			Int("lag_days", b.cfg.PublicationLagDays).
			Msg("look-ahead model: calendar fiscal year end assumed unless configured")
		b.assumptionLog = true
	}

	filtered, err := FilterByPublicationDate(b.fundamentals, asOf,
		b.cfg.PublicationLagDays, b.cfg.FiscalYearEndMonth, b.cfg.FiscalYearEndDay)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", asOf.Format("2006-01-02"), err)
	}

	securities := make([]*Security, 0, len(filtered.Symbols()))
	for _, sym := range filtered.Symbols() {
		rows := filtered.BySymbol(sym)
		if len(rows) == 0 {
			continue
		}
		latest := rows[0] // years descending
		securities = append(securities, &Security{
			Symbol:          sym,
			Sector:          latest.Sector,
			MarketCap:       latest.MarketCap,
			AvgDollarVolume: latest.AvgDollarVolume,
			Fundamentals:    latest,
			Scores:          make(map[string]float64),
		})
	}

	if len(securities) == 0 {
		return nil, fmt.Errorf("snapshot %s: %w", asOf.Format("2006-01-02"), ErrEmptyUniverse)
	}

	return &Snapshot{AsOf: asOf, Securities: securities}, nil
}

// PublicationDate models when a fiscal year's figures became public:
// fiscal year end plus the reporting lag.
func PublicationDate(year, fyEndMonth, fyEndDay, lagDays int) time.Time {
	fyEnd := time.Date(year, time.Month(fyEndMonth), fyEndDay, 0, 0, 0, 0, time.UTC)
	return fyEnd.AddDate(0, 0, lagDays)
}

// FilterByPublicationDate keeps only rows whose modeled publication date is
// at or before asOf. An empty result is an error: proceeding with zero rows
// would silently corrupt the backtest.
func FilterByPublicationDate(set *data.FundamentalsSet, asOf time.Time, lagDays, fyEndMonth, fyEndDay int) (*data.FundamentalsSet, error) {
	var kept []data.FundamentalsRow
	for _, row := range set.Rows() {
		if !PublicationDate(row.Year, fyEndMonth, fyEndDay, lagDays).After(asOf) {
			kept = append(kept, row)
		}
	}

	if len(kept) == 0 {
		return nil, ErrEmptyUniverse
	}

	log.Debug().Time("as_of", asOf).Int("before", set.Len()).Int("after", len(kept)).
		Msg("publication-date filter")

	return data.NewFundamentalsSet(kept), nil
}

// LatestAvailableYear walks backward from asOf's year to find the most recent
// fiscal year whose figures were public by asOf. The search is bounded by
// maxLookback years; past that it falls back to asOf.Year()-2, a deliberately
// conservative default.
func LatestAvailableYear(asOf time.Time, lagDays, fyEndMonth, fyEndDay, maxLookback int) int {
	for back := 0; back < maxLookback; back++ {
		year := asOf.Year() - back
		if !PublicationDate(year, fyEndMonth, fyEndDay, lagDays).After(asOf) {
			return year
		}
	}

	fallback := asOf.Year() - 2
	log.Warn().Time("as_of", asOf).Int("lookback_years", maxLookback).Int("fallback_year", fallback).
		Msg("no fiscal year public within lookback, using conservative fallback")
	return fallback
}

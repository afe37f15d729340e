package universe

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/config"
)

// Filter removes securities from a snapshot and reports per-reason exclusion
// counts. Filters never mutate the securities they keep.
type Filter interface {
	Name() string
	Apply(securities []*Security) (kept []*Security, reasons map[string]int)
}

// StageResult records one filter stage's before/after counts.
type StageResult struct {
	Name    string
	Before  int
	After   int
	Reasons map[string]int
	Relaxed bool
}

// Chain runs filters in fixed order: liquidity first (cheap, prunes the most),
// then hard financial-risk limits, then the optional quality screen. Hard
// filters fall back to relaxed thresholds when the chain would otherwise leave
// fewer than the configured minimum survivors.
type Chain struct {
	cfg     *config.Config
	filters []Filter
}

// NewChain builds the standard chain. withQuality appends the quality screen.
func NewChain(cfg *config.Config, withQuality bool) *Chain {
	filters := []Filter{
		&LiquidityFilter{cfg: cfg},
		&HardRiskFilter{cfg: cfg},
	}
	if withQuality {
		filters = append(filters, &QualityFilter{})
	}
	return &Chain{cfg: cfg, filters: filters}
}

// Apply runs the chain and returns the surviving snapshot plus per-stage
// results.
func (c *Chain) Apply(snap *Snapshot) (*Snapshot, []StageResult) {
	securities := snap.Securities
	stages := make([]StageResult, 0, len(c.filters))

	for _, f := range c.filters {
		before := len(securities)
		kept, reasons := f.Apply(securities)
		stage := StageResult{Name: f.Name(), Before: before, After: len(kept), Reasons: reasons}

		// Safety valve: an over-aggressive hard filter would break the
		// minimum-positions constraint downstream.
		if len(kept) < c.cfg.MinPositions {
			if relaxable, ok := f.(interface {
				ApplyRelaxed(securities []*Security) ([]*Security, map[string]int)
			}); ok {
				relaxedKept, relaxedReasons := relaxable.ApplyRelaxed(securities)
				if len(relaxedKept) > len(kept) {
					log.Warn().Str("filter", f.Name()).
						Int("strict_survivors", len(kept)).
						Int("relaxed_survivors", len(relaxedKept)).
						Int("min_positions", c.cfg.MinPositions).
						Msg("filter over-excluded, falling back to relaxed thresholds")
					kept = relaxedKept
					stage.After = len(relaxedKept)
					stage.Reasons = relaxedReasons
					stage.Relaxed = true
				}
			}
		}

		log.Info().Str("filter", f.Name()).Int("before", stage.Before).
			Int("after", stage.After).Interface("reasons", stage.Reasons).
			Bool("relaxed", stage.Relaxed).Msg("filter stage")

		stages = append(stages, stage)
		securities = kept
	}

	return &Snapshot{AsOf: snap.AsOf, Securities: securities}, stages
}

// LiquidityFilter excludes names that are too small or too thin to trade:
// minimum market cap, minimum average daily dollar volume, and a market-impact
// proxy capping the hypothetical position as a fraction of daily volume.
type LiquidityFilter struct {
	cfg *config.Config
}

func (f *LiquidityFilter) Name() string { return "liquidity" }

func (f *LiquidityFilter) Apply(securities []*Security) ([]*Security, map[string]int) {
	reasons := make(map[string]int)
	kept := make([]*Security, 0, len(securities))

	positionSize := f.cfg.PortfolioValue * f.cfg.MaxPositionWeight

	for _, sec := range securities {
		switch {
		case sec.MarketCap < f.cfg.MinMarketCap:
			reasons["market_cap"]++
		case sec.AvgDollarVolume < f.cfg.MinDollarVolume:
			reasons["dollar_volume"]++
		case sec.AvgDollarVolume > 0 && positionSize/sec.AvgDollarVolume > f.cfg.MaxVolumeImpact:
			reasons["volume_impact"]++
		default:
			kept = append(kept, sec)
		}
	}

	return kept, reasons
}

// HardRiskFilter applies binary balance-sheet exclusions: debt/equity cap,
// net-debt/EBITDA cap, interest-coverage floor. A name is out when any
// condition fails; all failing reasons are counted, not just the first.
type HardRiskFilter struct {
	cfg *config.Config
}

func (f *HardRiskFilter) Name() string { return "hard_risk" }

func (f *HardRiskFilter) Apply(securities []*Security) ([]*Security, map[string]int) {
	return f.apply(securities, f.cfg.MaxDebtToEquity, f.cfg.MaxNetDebtEBITDA, f.cfg.MinInterestCover)
}

// ApplyRelaxed widens the caps by half and halves the coverage floor.
func (f *HardRiskFilter) ApplyRelaxed(securities []*Security) ([]*Security, map[string]int) {
	return f.apply(securities, f.cfg.MaxDebtToEquity*1.5, f.cfg.MaxNetDebtEBITDA*1.5, f.cfg.MinInterestCover*0.5)
}

func (f *HardRiskFilter) apply(securities []*Security, maxDE, maxNDE, minCover float64) ([]*Security, map[string]int) {
	reasons := make(map[string]int)
	kept := make([]*Security, 0, len(securities))

	for _, sec := range securities {
		fu := sec.Fundamentals
		failed := false

		if fu.Equity <= 0 || fu.TotalDebt/fu.Equity > maxDE {
			reasons["debt_to_equity"]++
			failed = true
		}

		if ebitda := fu.EBITDAOrProxy(); ebitda <= 0 || fu.NetDebt()/ebitda > maxNDE {
			// Net cash positions pass regardless of EBITDA.
			if fu.NetDebt() > 0 {
				reasons["net_debt_ebitda"]++
				failed = true
			}
		}

		if interest := fu.InterestOrProxy(); interest > 0 && fu.EBIT/interest < minCover {
			reasons["interest_coverage"]++
			failed = true
		}

		if !failed {
			kept = append(kept, sec)
		}
	}

	return kept, reasons
}

// QualityFilter is the optional qualitative screen: profitable, cash
// generative, and a minimum return on equity.
type QualityFilter struct{}

func (f *QualityFilter) Name() string { return "quality" }

func (f *QualityFilter) Apply(securities []*Security) ([]*Security, map[string]int) {
	reasons := make(map[string]int)
	kept := make([]*Security, 0, len(securities))

	for _, sec := range securities {
		fu := sec.Fundamentals
		switch {
		case fu.NetIncome <= 0:
			reasons["unprofitable"]++
		case fu.FCF < 0:
			reasons["negative_fcf"]++
		case fu.Equity > 0 && fu.NetIncome/fu.Equity < 0.08:
			reasons["low_roe"]++
		default:
			kept = append(kept, sec)
		}
	}

	return kept, reasons
}

// Describe renders a one-line summary of a stage result for reports.
func (r StageResult) Describe() string {
	return fmt.Sprintf("%s: %d -> %d (relaxed=%v)", r.Name, r.Before, r.After, r.Relaxed)
}

package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/allocate"
	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/metrics"
	"github.com/alphaforge/smartmoney/internal/scoring"
	"github.com/alphaforge/smartmoney/internal/universe"
)

// EngineParams wires the engine's collaborators. Prices and fundamentals are
// treated as read-only for the whole run.
type EngineParams struct {
	Config       *config.Config
	Prices       *data.PriceMatrix
	Fundamentals *data.FundamentalsSet
	Scorers      []scoring.FactorScorer

	// Optional.
	Benchmark     *ReturnSeries
	Collector     *metrics.Collector
	QualityScreen bool
	RunStress     bool
}

// Engine is the walk-forward backtester. Each rebalance date runs
// build -> filter -> score -> select -> allocate -> record using only data
// available as of that date; daily returns accumulate net of transaction
// costs between rebalances.
type Engine struct {
	cfg       *config.Config
	prices    *data.PriceMatrix
	builder   *universe.Builder
	chain     *universe.Chain
	scorers   []scoring.FactorScorer
	composite *scoring.Composite
	allocator *allocate.Allocator
	benchmark *ReturnSeries
	collector *metrics.Collector
	runStress bool
}

// NewEngine validates the configuration and wires the pipeline. Invalid
// composite weights fail here, before any computation.
func NewEngine(p EngineParams) (*Engine, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if p.Prices == nil || len(p.Prices.Dates()) == 0 {
		return nil, fmt.Errorf("price matrix is required")
	}
	if p.Fundamentals == nil || p.Fundamentals.Len() == 0 {
		return nil, fmt.Errorf("fundamentals are required")
	}
	if len(p.Scorers) == 0 {
		return nil, fmt.Errorf("at least one factor scorer is required")
	}

	composite, err := scoring.NewComposite(p.Config.FactorWeights, p.Config.UseZScore)
	if err != nil {
		return nil, fmt.Errorf("engine composite: %w", err)
	}

	return &Engine{
		cfg:       p.Config,
		prices:    p.Prices,
		builder:   universe.NewBuilder(p.Config, p.Fundamentals),
		chain:     universe.NewChain(p.Config, p.QualityScreen),
		scorers:   p.Scorers,
		composite: composite,
		allocator: allocate.NewAllocator(p.Config, p.Prices),
		benchmark: p.Benchmark,
		collector: p.Collector,
		runStress: p.RunStress,
	}, nil
}

// rebalanceOutcome is one successful rebalance's portfolio and bookkeeping.
type rebalanceOutcome struct {
	weights  map[string]float64
	holdings []HoldingRecord
}

// Run executes the walk-forward loop over the full price calendar. Per-date
// failures are absorbed: the date is skipped, previous weights carry forward,
// and a warning is logged. The run fails only when no date at all produced a
// portfolio or the final series is too short for metrics.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	dates := e.prices.Dates()

	rebalanceSet := make(map[int]bool)
	for _, idx := range e.prices.RebalanceIndices(e.cfg.Rebalance) {
		rebalanceSet[idx] = true
	}

	var (
		currentWeights  map[string]float64
		weightsHistory  []WeightsRecord
		holdingsHistory []HoldingRecord
		skipped         []SkippedPeriod
		returns         ReturnSeries
	)

	for i := range dates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled: %w", err)
		}

		cost := 0.0
		if rebalanceSet[i] {
			outcome, err := e.rebalance(i)
			if err != nil {
				log.Warn().Time("date", dates[i]).Err(err).
					Msg("rebalance skipped, carrying previous weights forward")
				skipped = append(skipped, SkippedPeriod{Date: dates[i], Reason: err.Error()})
				e.collector.IncSkipped()
			} else {
				turnover := Turnover(currentWeights, outcome.weights)
				cost = turnover * e.cfg.TransactionCostBp / 10000

				weightsHistory = append(weightsHistory, WeightsRecord{
					Date:     dates[i],
					Weights:  outcome.weights,
					Turnover: turnover,
					Cost:     cost,
				})
				holdingsHistory = append(holdingsHistory, outcome.holdings...)
				currentWeights = outcome.weights
				e.collector.IncRebalance()
			}
		}

		// No portfolio yet: nothing to accumulate.
		if len(currentWeights) == 0 {
			continue
		}

		returns.Append(dates[i], e.dailyReturn(i, currentWeights)-cost)
	}

	if len(weightsHistory) == 0 {
		return nil, fmt.Errorf("%w: %d dates attempted", ErrNoRebalances, len(skipped))
	}

	perf, err := CalculateMetrics(returns, e.benchmark, e.cfg.RiskFreeRate, e.cfg.PeriodsPerYear, weightsHistory)
	if err != nil {
		return nil, fmt.Errorf("backtest metrics: %w", err)
	}

	result := &Result{
		RunID:             uuid.NewString(),
		StartDate:         dates[0],
		EndDate:           dates[len(dates)-1],
		Returns:           returns,
		CumulativeReturns: returns.Cumulative(),
		Drawdowns:         returns.Drawdowns(),
		WeightsHistory:    weightsHistory,
		HoldingsHistory:   holdingsHistory,
		SkippedPeriods:    skipped,
		Metrics:           perf,
	}

	if e.runStress {
		result.StressSuite = NewStressTester(nil, e.cfg.StressHardLimit).Run(returns)
	}

	result.ValidationPassed, result.ValidationNotes = e.validate(result)
	e.collector.ObserveRunDuration(time.Since(started))

	log.Info().Str("run_id", result.RunID).Int("periods", returns.Len()).
		Int("rebalances", len(weightsHistory)).Int("skipped", len(skipped)).
		Bool("validation_passed", result.ValidationPassed).
		Msg("backtest complete")

	return result, nil
}

// rebalance runs the per-date pipeline using only data public as of the date.
func (e *Engine) rebalance(idx int) (*rebalanceOutcome, error) {
	asOf := e.prices.Dates()[idx]

	snap, err := e.builder.Snapshot(asOf)
	if err != nil {
		return nil, err
	}

	snap, stages := e.chain.Apply(snap)
	for _, stage := range stages {
		e.collector.AddExclusions(stage.Name, stage.Reasons)
	}
	e.collector.SetUniverseSize(snap.Len())

	if snap.Len() < e.cfg.MinPositions {
		return nil, fmt.Errorf("%w: %d securities after filtering, need %d",
			ErrInsufficientData, snap.Len(), e.cfg.MinPositions)
	}

	for _, scorer := range e.scorers {
		if err := scorer.Score(snap); err != nil {
			return nil, fmt.Errorf("scorer %s: %w", scorer.Name(), err)
		}
	}

	ranked, err := e.composite.Aggregate(snap)
	if err != nil {
		return nil, err
	}
	e.composite.PureScore(snap)

	topN := e.cfg.MaxPositions
	if topN > len(ranked) {
		topN = len(ranked)
	}
	if topN < e.cfg.MinPositions {
		return nil, fmt.Errorf("%w: only %d candidates ranked, need %d",
			ErrInsufficientData, topN, e.cfg.MinPositions)
	}

	selected := make([]*universe.Security, topN)
	for i := 0; i < topN; i++ {
		selected[i] = ranked[i].Security
	}

	weights, err := e.allocator.Allocate(selected, idx)
	if err != nil {
		return nil, err
	}

	holdings := make([]HoldingRecord, topN)
	for i := 0; i < topN; i++ {
		holdings[i] = HoldingRecord{
			Date:           asOf,
			Symbol:         ranked[i].Security.Symbol,
			Sector:         ranked[i].Security.Sector,
			Weight:         weights[ranked[i].Security.Symbol],
			CompositeScore: ranked[i].Score,
			Rank:           ranked[i].Rank,
		}
	}

	return &rebalanceOutcome{weights: weights, holdings: holdings}, nil
}

// dailyReturn applies the weights to the day's per-asset returns. Assets with
// a missing return contribute zero; their weight is deliberately not
// renormalized away.
func (e *Engine) dailyReturn(idx int, weights map[string]float64) float64 {
	total := 0.0
	for symbol, w := range weights {
		r := e.prices.DailyReturn(idx, symbol)
		if math.IsNaN(r) {
			continue
		}
		total += w * r
	}
	return total
}

// validate applies the run-level sanity checks that gate the verdict.
func (e *Engine) validate(result *Result) (bool, []string) {
	var notes []string
	passed := true

	for _, rec := range result.WeightsHistory {
		sum := 0.0
		for _, w := range rec.Weights {
			if w < 0 {
				passed = false
				notes = append(notes, fmt.Sprintf("%s: negative weight", rec.Date.Format("2006-01-02")))
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-6 {
			passed = false
			notes = append(notes, fmt.Sprintf("%s: weights sum to %.8f", rec.Date.Format("2006-01-02"), sum))
		}
	}

	attempted := len(result.WeightsHistory) + len(result.SkippedPeriods)
	if attempted > 0 {
		skipRate := float64(len(result.SkippedPeriods)) / float64(attempted)
		if skipRate > 0.5 {
			passed = false
			notes = append(notes, fmt.Sprintf("%.0f%% of rebalance dates skipped", skipRate*100))
		}
	}

	if result.StressSuite != nil && !result.StressSuite.Passed {
		notes = append(notes, "stress suite failed")
	}

	if len(notes) == 0 {
		notes = append(notes, "all validation checks passed")
	}
	return passed, notes
}

package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/scoring"
)

var testSectors = []string{"Tech", "Energy", "Health", "Finance"}

func symbolsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SYM%02d", i)
	}
	return out
}

func testSymbols() []string { return symbolsN(30) }

// priceMatrixOver builds business-day random-walk closes with a fixed seed.
func priceMatrixOver(t *testing.T, symbols []string, start, end time.Time) *data.PriceMatrix {
	t.Helper()
	rng := rand.New(rand.NewSource(42))

	var dates []time.Time
	day := start
	for !day.After(end) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	level := make([]float64, len(symbols))
	for i := range level {
		level[i] = 50 + rng.Float64()*100
	}

	prices := make([][]float64, len(dates))
	for i := range prices {
		row := make([]float64, len(symbols))
		for j := range row {
			level[j] *= 1 + rng.NormFloat64()*0.015 + 0.0002
			row[j] = level[j]
		}
		prices[i] = row
	}

	m, err := data.NewPriceMatrix(dates, symbols, prices)
	require.NoError(t, err)
	return m
}

func testPriceMatrix(t *testing.T) *data.PriceMatrix {
	t.Helper()
	return priceMatrixOver(t, testSymbols(), d(2021, 1, 4), d(2023, 12, 29))
}

func fundamentalsOver(symbols []string, firstYear, lastYear int) *data.FundamentalsSet {
	rng := rand.New(rand.NewSource(7))
	var rows []data.FundamentalsRow

	for i, sym := range symbols {
		for year := firstYear; year <= lastYear; year++ {
			revenue := 1000 + rng.Float64()*4000
			netIncome := revenue * (0.05 + rng.Float64()*0.15)
			rows = append(rows, data.FundamentalsRow{
				Symbol:          sym,
				Year:            year,
				Sector:          testSectors[i%len(testSectors)],
				Revenue:         revenue,
				EBIT:            netIncome * 1.4,
				NetIncome:       netIncome,
				Equity:          revenue * 0.8,
				TotalDebt:       revenue * 0.3,
				Cash:            revenue * 0.1,
				InterestExpense: netIncome * 0.1,
				FCF:             netIncome * 0.9,
				MarketCap:       1e9 + rng.Float64()*9e9,
				AvgDollarVolume: 50e6,
			})
		}
	}
	return data.NewFundamentalsSet(rows)
}

func testFundamentals() *data.FundamentalsSet {
	return fundamentalsOver(testSymbols(), 2019, 2022)
}

func holdingsFor(symbols []string) *data.HoldingsSet {
	rng := rand.New(rand.NewSource(13))
	var rows []data.HoldingsRow
	for _, sym := range symbols {
		rows = append(rows, data.HoldingsRow{
			Symbol:            sym,
			FundCount:         rng.Intn(25),
			FundShareDelta:    rng.NormFloat64() * 0.1,
			SuperinvestorBuys: rng.Intn(4),
			InsiderBuys:       rng.Intn(5),
			InsiderSells:      rng.Intn(5),
			InsiderNetValue:   rng.NormFloat64() * 1e6,
		})
	}
	return data.NewHoldingsSet(rows)
}

func testScorers(prices *data.PriceMatrix) []scoring.FactorScorer {
	holdings := holdingsFor(prices.Symbols())
	return []scoring.FactorScorer{
		scoring.NewSmartMoneyScorer(holdings),
		scoring.NewInsiderScorer(holdings),
		scoring.NewMomentumScorer(prices),
		scoring.NewValueScorer(),
		scoring.NewQualityScorer(),
		scoring.NewRiskScorer(prices),
	}
}

func TestEngineEndToEnd(t *testing.T) {
	cfg := config.Default()
	symbols := symbolsN(50)
	prices := priceMatrixOver(t, symbols, d(2009, 1, 5), d(2023, 12, 29))

	engine, err := NewEngine(EngineParams{
		Config:        cfg,
		Prices:        prices,
		Fundamentals:  fundamentalsOver(symbols, 2007, 2022),
		Scorers:       testScorers(prices),
		QualityScreen: true,
	})
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 60, len(result.WeightsHistory), "quarterly over fifteen years")
	assert.Empty(t, result.SkippedPeriods)
	assert.True(t, result.ValidationPassed, "notes: %v", result.ValidationNotes)

	for _, rec := range result.WeightsHistory {
		sum := 0.0
		for sym, w := range rec.Weights {
			assert.GreaterOrEqual(t, w, 0.0, sym)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6, rec.Date.Format("2006-01-02"))
		assert.LessOrEqual(t, len(rec.Weights), cfg.MaxPositions)
		assert.GreaterOrEqual(t, len(rec.Weights), cfg.MinPositions)
	}

	require.NotNil(t, result.Metrics)
	assert.Equal(t, result.Returns.Len(), result.Metrics.NumPeriods)
	assert.Len(t, result.CumulativeReturns, result.Returns.Len())
	assert.Len(t, result.Drawdowns, result.Returns.Len())

	// Accumulation starts at the first rebalance, not the calendar start.
	firstRebalance := result.WeightsHistory[0].Date
	assert.Equal(t, firstRebalance, result.Returns.Dates[0])

	// Initial buy-in from cash is one-way turnover 0.5.
	assert.InDelta(t, 0.5, result.WeightsHistory[0].Turnover, 1e-9)
	assert.InDelta(t, 0.0005, result.WeightsHistory[0].Cost, 1e-9, "10 bps on half turnover")

	// Daily returns are bounded by the synthetic volatility regime.
	for _, r := range result.Returns.Values {
		assert.False(t, math.IsNaN(r))
		assert.Less(t, math.Abs(r), 0.25)
	}
}

func TestEngineHoldingsHistory(t *testing.T) {
	cfg := config.Default()
	prices := testPriceMatrix(t)

	engine, err := NewEngine(EngineParams{
		Config:       cfg,
		Prices:       prices,
		Fundamentals: testFundamentals(),
		Scorers:      testScorers(prices),
	})
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, result.HoldingsHistory)
	for _, h := range result.HoldingsHistory {
		assert.NotEmpty(t, h.Symbol)
		assert.Positive(t, h.Rank)
		assert.GreaterOrEqual(t, h.Weight, 0.0)
	}

	// Ranks within one date are unique-ish and start at 1.
	first := result.HoldingsHistory[0]
	assert.Equal(t, 1, first.Rank)
}

func TestEngineStressSuiteAttached(t *testing.T) {
	cfg := config.Default()
	prices := testPriceMatrix(t)

	engine, err := NewEngine(EngineParams{
		Config:       cfg,
		Prices:       prices,
		Fundamentals: testFundamentals(),
		Scorers:      testScorers(prices),
		RunStress:    true,
	})
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.StressSuite)

	// 2021-2023 data covers only the rates_2022 window from the default table.
	evaluated := 0
	for _, r := range result.StressSuite.Results {
		if r.Evaluated {
			evaluated++
		}
	}
	assert.Equal(t, result.StressSuite.Evaluated, evaluated)
	assert.GreaterOrEqual(t, evaluated, 1)
}

func TestEngineRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FactorWeights = map[string]float64{"value": 0.9, "quality": 0.6} // sums to 1.5
	prices := testPriceMatrix(t)

	_, err := NewEngine(EngineParams{
		Config:       cfg,
		Prices:       prices,
		Fundamentals: testFundamentals(),
		Scorers:      testScorers(prices),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestEngineAllDatesFailing(t *testing.T) {
	cfg := config.Default()
	prices := testPriceMatrix(t)

	// Fundamentals too old to ever pass the publication filter with data
	// this recent, so every rebalance is skipped.
	var rows []data.FundamentalsRow
	for _, sym := range testSymbols() {
		rows = append(rows, data.FundamentalsRow{
			Symbol: sym, Year: 2021, Sector: "Tech",
			MarketCap: 1e6, // also fails the liquidity floor
		})
	}

	engine, err := NewEngine(EngineParams{
		Config:       cfg,
		Prices:       prices,
		Fundamentals: data.NewFundamentalsSet(rows),
		Scorers:      testScorers(prices),
	})
	require.NoError(t, err)

	_, err = engine.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRebalances)
}

func TestEngineContextCancellation(t *testing.T) {
	cfg := config.Default()
	prices := testPriceMatrix(t)

	engine, err := NewEngine(EngineParams{
		Config:       cfg,
		Prices:       prices,
		Fundamentals: testFundamentals(),
		Scorers:      testScorers(prices),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

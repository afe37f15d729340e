package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/universe"
)

func snapOf(secs ...*universe.Security) *universe.Snapshot {
	return &universe.Snapshot{
		AsOf:       time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Securities: secs,
	}
}

func secWith(symbol string, fu data.FundamentalsRow, mcap float64) *universe.Security {
	fu.Symbol = symbol
	return &universe.Security{
		Symbol:       symbol,
		Sector:       fu.Sector,
		MarketCap:    mcap,
		Fundamentals: fu,
		Scores:       make(map[string]float64),
	}
}

func TestSmartMoneyScorer(t *testing.T) {
	holdings := data.NewHoldingsSet([]data.HoldingsRow{
		{Symbol: "HOT", FundCount: 20, FundShareDelta: 0.25, SuperinvestorBuys: 5},
		{Symbol: "COLD", FundCount: 0, FundShareDelta: -0.30, SuperinvestorBuys: 0},
	})
	scorer := NewSmartMoneyScorer(holdings)

	snap := snapOf(
		secWith("HOT", data.FundamentalsRow{}, 1e9),
		secWith("COLD", data.FundamentalsRow{}, 1e9),
		secWith("UNKNOWN", data.FundamentalsRow{}, 1e9),
	)
	require.NoError(t, scorer.Score(snap))

	hot := snap.Securities[0].Scores[ColumnName("smartmoney")]
	cold := snap.Securities[1].Scores[ColumnName("smartmoney")]
	unknown := snap.Securities[2].Scores[ColumnName("smartmoney")]

	// Saturated inputs: breadth 1, accumulation 1, conviction 1.
	assert.InDelta(t, 1.0, hot, 1e-9)
	assert.InDelta(t, 0.0, cold, 1e-9)
	assert.InDelta(t, 0.0, unknown, 1e-9, "no institutional footprint is no signal")
}

func TestInsiderScorerNeutralWhenSilent(t *testing.T) {
	holdings := data.NewHoldingsSet([]data.HoldingsRow{
		{Symbol: "BUYING", InsiderBuys: 8, InsiderSells: 2, InsiderNetValue: 1e6},
		{Symbol: "SELLING", InsiderBuys: 0, InsiderSells: 10, InsiderNetValue: -2e6},
	})
	scorer := NewInsiderScorer(holdings)

	snap := snapOf(
		secWith("BUYING", data.FundamentalsRow{}, 1e9),
		secWith("SELLING", data.FundamentalsRow{}, 1e9),
		secWith("SILENT", data.FundamentalsRow{}, 1e9),
	)
	require.NoError(t, scorer.Score(snap))

	buying := snap.Securities[0].Scores[ColumnName("insider")]
	selling := snap.Securities[1].Scores[ColumnName("insider")]
	silent := snap.Securities[2].Scores[ColumnName("insider")]

	assert.InDelta(t, 0.6*0.8+0.4*1.0, buying, 1e-9)
	assert.InDelta(t, 0.0, selling, 1e-9)
	assert.InDelta(t, 0.5, silent, 1e-9, "silence is neutral, not bearish")
}

func TestMomentumScorerRanksTrendOverDecline(t *testing.T) {
	// 300 trading days; WINNER doubles over the year, LOSER halves.
	var dates []time.Time
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(dates) < 300 {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	prices := make([][]float64, len(dates))
	for i := range prices {
		up := 100 * (1 + float64(i)/float64(len(dates)))
		down := 100 * (1 - 0.5*float64(i)/float64(len(dates)))
		prices[i] = []float64{up, down}
	}
	matrix, err := data.NewPriceMatrix(dates, []string{"WINNER", "LOSER"}, prices)
	require.NoError(t, err)

	scorer := NewMomentumScorer(matrix)
	snap := &universe.Snapshot{
		AsOf: dates[len(dates)-1],
		Securities: []*universe.Security{
			secWith("WINNER", data.FundamentalsRow{}, 1e9),
			secWith("LOSER", data.FundamentalsRow{}, 1e9),
		},
	}
	require.NoError(t, scorer.Score(snap))

	winner := snap.Securities[0].Scores[ColumnName("momentum")]
	loser := snap.Securities[1].Scores[ColumnName("momentum")]
	assert.Greater(t, winner, loser)
}

func TestValueScorerPrefersCheap(t *testing.T) {
	scorer := NewValueScorer()

	cheap := data.FundamentalsRow{NetIncome: 200, FCF: 180}
	rich := data.FundamentalsRow{NetIncome: 20, FCF: 15}

	snap := snapOf(
		secWith("CHEAP", cheap, 1000),
		secWith("RICH", rich, 1000),
	)
	require.NoError(t, scorer.Score(snap))

	assert.Greater(t,
		snap.Securities[0].Scores[ColumnName("value")],
		snap.Securities[1].Scores[ColumnName("value")])
}

func TestQualityScorerPrefersProfitable(t *testing.T) {
	scorer := NewQualityScorer()

	strong := data.FundamentalsRow{NetIncome: 200, Revenue: 800, Equity: 500}
	weak := data.FundamentalsRow{NetIncome: 10, Revenue: 800, Equity: 500}

	snap := snapOf(
		secWith("STRONG", strong, 1e9),
		secWith("WEAK", weak, 1e9),
	)
	require.NoError(t, scorer.Score(snap))

	assert.Greater(t,
		snap.Securities[0].Scores[ColumnName("quality")],
		snap.Securities[1].Scores[ColumnName("quality")])
}

func TestRiskScorerPenalizesLeverageAndNegativeEquity(t *testing.T) {
	scorer := NewRiskScorer(nil)

	safe := data.FundamentalsRow{TotalDebt: 50, Equity: 1000}
	levered := data.FundamentalsRow{TotalDebt: 3000, Equity: 500}
	broken := data.FundamentalsRow{TotalDebt: 100, Equity: -50}

	snap := snapOf(
		secWith("SAFE", safe, 1e9),
		secWith("LEVERED", levered, 1e9),
		secWith("BROKEN", broken, 1e9),
	)
	require.NoError(t, scorer.Score(snap))

	safeScore := snap.Securities[0].Scores[ColumnName("risk")]
	leveredScore := snap.Securities[1].Scores[ColumnName("risk")]
	brokenScore := snap.Securities[2].Scores[ColumnName("risk")]

	assert.Greater(t, safeScore, leveredScore)
	assert.GreaterOrEqual(t, leveredScore, brokenScore, "negative equity ranks as riskiest")
}

func TestPercentileRanks(t *testing.T) {
	ranks := percentileRanks([]float64{3, 1, 2})
	assert.InDelta(t, 1.0, ranks[0], 1e-9)
	assert.InDelta(t, 0.0, ranks[1], 1e-9)
	assert.InDelta(t, 0.5, ranks[2], 1e-9)
}

func TestPercentileRanksTiesShareAverage(t *testing.T) {
	ranks := percentileRanks([]float64{1, 1, 2})
	assert.InDelta(t, 0.25, ranks[0], 1e-9)
	assert.InDelta(t, 0.25, ranks[1], 1e-9)
	assert.InDelta(t, 1.0, ranks[2], 1e-9)
}

func TestPercentileRanksSingleObservation(t *testing.T) {
	ranks := percentileRanks([]float64{42})
	assert.InDelta(t, 0.5, ranks[0], 1e-9)
}

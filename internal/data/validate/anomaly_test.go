package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaforge/smartmoney/internal/data"
)

func sampleSet() *data.FundamentalsSet {
	return data.NewFundamentalsSet([]data.FundamentalsRow{
		{Symbol: "OK", Year: 2023, Revenue: 1000, NetIncome: 150, FCF: 140, Equity: 500},
		{Symbol: "MARGIN", Year: 2023, Revenue: 100, NetIncome: 250, FCF: 80, Equity: 500},
		{Symbol: "FCF", Year: 2023, Revenue: 1000, NetIncome: 100, FCF: 900, Equity: 500},
		{Symbol: "NEGEQ", Year: 2023, Revenue: 1000, NetIncome: 50, FCF: 40, Equity: -200},
	})
}

func TestCheckerFlagsAnomalies(t *testing.T) {
	checker := NewChecker(DefaultCheckerConfig(), false)

	out, anomalies := checker.Check(sampleSet())
	assert.Equal(t, 4, out.Len())
	require.Len(t, anomalies, 3)

	types := map[AnomalyType]int{}
	for _, a := range anomalies {
		types[a.Type]++
	}
	assert.Equal(t, 1, types[AnomalyNetMargin])
	assert.Equal(t, 1, types[AnomalyFCFConversion])
	assert.Equal(t, 1, types[AnomalyEquity])
}

func TestCheckerPassthroughKeepsValues(t *testing.T) {
	checker := NewChecker(DefaultCheckerConfig(), false)

	out, _ := checker.Check(sampleSet())
	row := out.BySymbol("MARGIN")[0]
	assert.InDelta(t, 250, row.NetIncome, 1e-12, "passthrough mode must not rewrite values")
}

func TestCheckerCleanWinsorizes(t *testing.T) {
	checker := NewChecker(DefaultCheckerConfig(), true)

	out, anomalies := checker.Check(sampleSet())
	require.Len(t, anomalies, 3)

	margin := out.BySymbol("MARGIN")[0]
	assert.InDelta(t, 100, margin.NetIncome, 1e-9, "net income capped at 100% margin")

	fcf := out.BySymbol("FCF")[0]
	assert.InDelta(t, 300, fcf.FCF, 1e-9, "FCF capped at 3x net income")

	// Negative equity is flagged but never rewritten.
	negeq := out.BySymbol("NEGEQ")[0]
	assert.InDelta(t, -200, negeq.Equity, 1e-12)

	ok := out.BySymbol("OK")[0]
	assert.InDelta(t, 150, ok.NetIncome, 1e-12, "clean rows pass unchanged")
}

package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crashSeries builds daily returns over [start, start+days) producing the
// given total drawdown after an initial flat day, so the drawdown path starts
// from a peak.
func crashSeries(start time.Time, days int, totalDrop float64) ReturnSeries {
	var s ReturnSeries
	s.Append(start, 0)
	perDay := 1.0
	if days > 1 {
		perDay = math.Pow(1+totalDrop, 1.0/float64(days-1))
	}
	for i := 1; i < days; i++ {
		s.Append(start.AddDate(0, 0, i), perDay-1)
	}
	return s
}

func TestStressWindowDrawdownPass(t *testing.T) {
	// covid_crash window allows -40%; a -30% slide passes.
	window := StressWindow{
		Name: "covid_crash", Start: d(2020, 2, 19), End: d(2020, 3, 23),
		Mode: DrawdownMode, MaxAcceptableDD: -0.40,
	}
	series := crashSeries(d(2020, 2, 19), 20, -0.30)

	suite := NewStressTester([]StressWindow{window}, -0.99).Run(series)
	require.Len(t, suite.Results, 1)
	assert.True(t, suite.Results[0].Evaluated)
	assert.True(t, suite.Results[0].Passed)
	assert.True(t, suite.Passed)
}

func TestStressWindowDrawdownFail(t *testing.T) {
	window := StressWindow{
		Name: "covid_crash", Start: d(2020, 2, 19), End: d(2020, 3, 23),
		Mode: DrawdownMode, MaxAcceptableDD: -0.40,
	}
	series := crashSeries(d(2020, 2, 19), 20, -0.45)

	suite := NewStressTester([]StressWindow{window}, -0.99).Run(series)
	assert.False(t, suite.Results[0].Passed)
	assert.False(t, suite.Passed)
}

func TestStressRecoveryWindow(t *testing.T) {
	window := StressWindow{
		Name: "covid_recovery", Start: d(2020, 3, 23), End: d(2020, 8, 31),
		Mode: RecoveryMode, MinCumReturn: 0.20,
	}

	var rally ReturnSeries
	day := d(2020, 3, 23)
	for i := 0; i < 100; i++ {
		rally.Append(day, 0.004)
		day = day.AddDate(0, 0, 1)
	}

	suite := NewStressTester([]StressWindow{window}, -0.99).Run(rally)
	require.True(t, suite.Results[0].Evaluated)
	assert.True(t, suite.Results[0].Passed, "0.4% daily over 100 days clears 20% capture")
}

func TestStressSkipsSparseWindows(t *testing.T) {
	windows := []StressWindow{
		{Name: "gfc", Start: d(2007, 10, 9), End: d(2009, 3, 9), Mode: DrawdownMode, MaxAcceptableDD: -0.50},
	}
	series := crashSeries(d(2020, 1, 1), 50, -0.10) // no overlap at all

	suite := NewStressTester(windows, -0.99).Run(series)
	require.Len(t, suite.Results, 1)
	assert.False(t, suite.Results[0].Evaluated)
	assert.Equal(t, 0, suite.Evaluated)
	assert.False(t, suite.Passed, "zero evaluated windows cannot reach the pass rate")
}

func TestStressHardLimitOverridesPassRate(t *testing.T) {
	// Window tolerates -60%, so a -50% slide passes the window check, but the
	// absolute hard limit of -35% is breached and fails the suite.
	windows := []StressWindow{
		{Name: "deep", Start: d(2020, 1, 1), End: d(2020, 6, 30), Mode: DrawdownMode, MaxAcceptableDD: -0.60},
	}
	series := crashSeries(d(2020, 1, 2), 60, -0.50)

	suite := NewStressTester(windows, 0).Run(series) // 0 selects the default limit
	require.True(t, suite.Results[0].Passed)
	assert.InDelta(t, 1.0, suite.PassRate, 1e-12)
	assert.True(t, suite.HardLimitBreached)
	assert.False(t, suite.Passed)
}

func TestStressSuitePassRateThreshold(t *testing.T) {
	// Three windows, two pass: 67% is below the 70% floor.
	windows := []StressWindow{
		{Name: "w1", Start: d(2020, 1, 1), End: d(2020, 1, 31), Mode: DrawdownMode, MaxAcceptableDD: -0.90},
		{Name: "w2", Start: d(2020, 2, 1), End: d(2020, 2, 28), Mode: DrawdownMode, MaxAcceptableDD: -0.90},
		{Name: "w3", Start: d(2020, 3, 1), End: d(2020, 3, 31), Mode: RecoveryMode, MinCumReturn: 5.0},
	}

	var flat ReturnSeries
	day := d(2020, 1, 1)
	for i := 0; i < 91; i++ {
		flat.Append(day, 0.0001)
		day = day.AddDate(0, 0, 1)
	}

	suite := NewStressTester(windows, -0.99).Run(flat)
	assert.Equal(t, 2, suite.PassedCount)
	assert.Equal(t, 3, suite.Evaluated)
	assert.False(t, suite.Passed)
}

func TestDefaultStressWindowsTable(t *testing.T) {
	windows := DefaultStressWindows()
	require.Len(t, windows, 6)

	byName := make(map[string]StressWindow, len(windows))
	for _, w := range windows {
		byName[w.Name] = w
	}
	assert.InDelta(t, -0.40, byName["covid_crash"].MaxAcceptableDD, 1e-12)
	assert.Equal(t, d(2020, 2, 19), byName["covid_crash"].Start)
	assert.Equal(t, RecoveryMode, byName["covid_recovery"].Mode)
	assert.InDelta(t, -0.50, byName["gfc"].MaxAcceptableDD, 1e-12)
}

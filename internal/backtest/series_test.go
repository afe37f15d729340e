package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func seriesOf(start time.Time, values ...float64) ReturnSeries {
	var s ReturnSeries
	for i, v := range values {
		s.Append(start.AddDate(0, 0, i), v)
	}
	return s
}

func TestCumulative(t *testing.T) {
	s := seriesOf(d(2024, 1, 1), 0.10, -0.05)
	cum := s.Cumulative()
	assert.InDelta(t, 1.10, cum[0], 1e-12)
	assert.InDelta(t, 1.045, cum[1], 1e-12)
	assert.InDelta(t, 0.045, s.TotalReturn(), 1e-12)
}

func TestDrawdowns(t *testing.T) {
	s := seriesOf(d(2024, 1, 1), 0.10, -0.20, 0.05)
	dd := s.Drawdowns()
	assert.InDelta(t, 0, dd[0], 1e-12, "new high is zero drawdown")
	assert.InDelta(t, -0.20, dd[1], 1e-12)
	assert.InDelta(t, -0.16, dd[2], 1e-12)
}

func TestDrawdownsMonotoneRiseIsZero(t *testing.T) {
	s := seriesOf(d(2024, 1, 1), 0.01, 0.02, 0.005, 0.03)
	for _, v := range s.Drawdowns() {
		assert.InDelta(t, 0, v, 1e-12)
	}
}

func TestSliceInclusive(t *testing.T) {
	s := seriesOf(d(2024, 1, 1), 0.01, 0.02, 0.03, 0.04)
	sliced := s.Slice(d(2024, 1, 2), d(2024, 1, 3))
	require.Equal(t, 2, sliced.Len())
	assert.InDelta(t, 0.02, sliced.Values[0], 1e-12)
	assert.InDelta(t, 0.03, sliced.Values[1], 1e-12)
}

func TestAlignInnerJoin(t *testing.T) {
	a := seriesOf(d(2024, 1, 1), 0.01, 0.02, 0.03)
	var b ReturnSeries
	b.Append(d(2024, 1, 2), 0.10)
	b.Append(d(2024, 1, 4), 0.20)

	outA, outB := Align(a, b)
	require.Equal(t, 1, outA.Len())
	require.Equal(t, 1, outB.Len())
	assert.Equal(t, d(2024, 1, 2), outA.Dates[0])
	assert.InDelta(t, 0.02, outA.Values[0], 1e-12)
	assert.InDelta(t, 0.10, outB.Values[0], 1e-12)
}

func TestTurnover(t *testing.T) {
	same := map[string]float64{"A": 0.5, "B": 0.5}
	assert.InDelta(t, 0, Turnover(same, same), 1e-12)

	disjoint := map[string]float64{"C": 0.5, "D": 0.5}
	assert.InDelta(t, 1.0, Turnover(same, disjoint), 1e-12, "full replacement is 1.0 one-way")

	partial := map[string]float64{"A": 0.6, "B": 0.4}
	assert.InDelta(t, 0.1, Turnover(same, partial), 1e-12)

	assert.InDelta(t, 0.5, Turnover(nil, same), 1e-12, "initial buy-in from cash is one-way 0.5")
}

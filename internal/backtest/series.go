package backtest

import (
	"time"
)

// ReturnSeries is a date-aligned series of periodic simple returns.
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the observation count.
func (s ReturnSeries) Len() int { return len(s.Values) }

// Append adds one observation.
func (s *ReturnSeries) Append(date time.Time, value float64) {
	s.Dates = append(s.Dates, date)
	s.Values = append(s.Values, value)
}

// Cumulative returns the compounded growth path, 1-based (starts at 1+r0).
func (s ReturnSeries) Cumulative() []float64 {
	out := make([]float64, len(s.Values))
	acc := 1.0
	for i, r := range s.Values {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}

// TotalReturn compounds the whole series.
func (s ReturnSeries) TotalReturn() float64 {
	acc := 1.0
	for _, r := range s.Values {
		acc *= 1 + r
	}
	return acc - 1
}

// Drawdowns returns the drawdown path: cumulative over running max, minus 1.
func (s ReturnSeries) Drawdowns() []float64 {
	cum := s.Cumulative()
	out := make([]float64, len(cum))
	peak := 0.0
	for i, c := range cum {
		if c > peak {
			peak = c
		}
		out[i] = c/peak - 1
	}
	return out
}

// Slice returns the observations within [from, to] inclusive.
func (s ReturnSeries) Slice(from, to time.Time) ReturnSeries {
	var out ReturnSeries
	for i, d := range s.Dates {
		if d.Before(from) || d.After(to) {
			continue
		}
		out.Append(d, s.Values[i])
	}
	return out
}

// Align inner-joins two series on their date index. Dates missing from either
// side are excluded from both; benchmark comparison must never run on
// independently indexed series.
func Align(a, b ReturnSeries) (ReturnSeries, ReturnSeries) {
	bIdx := make(map[time.Time]float64, len(b.Dates))
	for i, d := range b.Dates {
		bIdx[d] = b.Values[i]
	}

	var outA, outB ReturnSeries
	for i, d := range a.Dates {
		if v, ok := bIdx[d]; ok {
			outA.Append(d, a.Values[i])
			outB.Append(d, v)
		}
	}
	return outA, outB
}

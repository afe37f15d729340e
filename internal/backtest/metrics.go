package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/alphaforge/smartmoney/internal/config"
)

// PerformanceMetrics summarizes a return series. Benchmark-relative fields
// are populated only when HasBenchmark is true.
type PerformanceMetrics struct {
	NumPeriods  int     `json:"num_periods"`
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"`
	// DrawdownDays is the calendar length of the longest contiguous drawdown
	// span; an open-ended final drawdown counts through the last observation.
	DrawdownDays int     `json:"drawdown_days"`
	Calmar       float64 `json:"calmar"`

	AnnualTurnover float64 `json:"annual_turnover"`
	TradeCount     int     `json:"trade_count"`

	HasBenchmark     bool    `json:"has_benchmark"`
	Alpha            float64 `json:"alpha,omitempty"`
	Beta             float64 `json:"beta,omitempty"`
	TrackingError    float64 `json:"tracking_error,omitempty"`
	InformationRatio float64 `json:"information_ratio,omitempty"`
}

// WeightsRecord is one rebalance date's portfolio, immutable once recorded.
type WeightsRecord struct {
	Date     time.Time          `json:"date"`
	Weights  map[string]float64 `json:"weights"`
	Turnover float64            `json:"turnover"`
	Cost     float64            `json:"cost"`
}

// Turnover is one-way turnover between two weight vectors: half the sum of
// absolute weight changes. Identical vectors give exactly 0; fully disjoint
// vectors give 1.
func Turnover(old, new_ map[string]float64) float64 {
	symbols := make(map[string]struct{}, len(old)+len(new_))
	for s := range old {
		symbols[s] = struct{}{}
	}
	for s := range new_ {
		symbols[s] = struct{}{}
	}

	sum := 0.0
	for s := range symbols {
		sum += math.Abs(new_[s] - old[s])
	}
	return sum / 2
}

// CalculateMetrics computes summary statistics from a return series. It fails
// below the minimum observation floor: there is no meaningful metric under 10
// observations.
func CalculateMetrics(returns ReturnSeries, benchmark *ReturnSeries, riskFree float64, periodsPerYear int, weightsHistory []WeightsRecord) (*PerformanceMetrics, error) {
	n := returns.Len()
	if n < config.MinMetricObservations {
		return nil, fmt.Errorf("%w: %d return observations, need at least %d",
			ErrInsufficientData, n, config.MinMetricObservations)
	}

	m := &PerformanceMetrics{NumPeriods: n}
	ppy := float64(periodsPerYear)
	rfPeriod := riskFree / ppy

	m.TotalReturn = returns.TotalReturn()
	m.CAGR = math.Pow(1+m.TotalReturn, ppy/float64(n)) - 1

	mean, std := meanStd(returns.Values)
	m.Volatility = std * math.Sqrt(ppy)

	if std > 0 {
		m.Sharpe = (mean - rfPeriod) / std * math.Sqrt(ppy)
	}

	downside := downsideDeviation(returns.Values)
	m.Sortino = (mean - rfPeriod) / downside * math.Sqrt(ppy)

	m.MaxDrawdown, m.DrawdownDays = drawdownStats(returns)

	if m.MaxDrawdown < 0 {
		m.Calmar = m.CAGR / math.Abs(m.MaxDrawdown)
	}

	if len(weightsHistory) > 1 {
		m.AnnualTurnover, m.TradeCount = turnoverStats(weightsHistory)
	}

	if benchmark != nil {
		applyBenchmarkStats(m, returns, *benchmark, rfPeriod, ppy)
	}

	return m, nil
}

// downsideDeviation is the standard deviation of the negative returns only,
// floored at a small epsilon when no negative returns exist.
func downsideDeviation(values []float64) float64 {
	var negatives []float64
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	if len(negatives) < 2 {
		return config.SortinoEpsilon
	}
	_, std := meanStd(negatives)
	if std < config.SortinoEpsilon {
		return config.SortinoEpsilon
	}
	return std
}

// drawdownStats returns the deepest drawdown and the calendar-day length of
// the longest contiguous in-drawdown span.
func drawdownStats(returns ReturnSeries) (float64, int) {
	dd := returns.Drawdowns()

	maxDD := 0.0
	longest := 0
	spanStart := -1

	for i, d := range dd {
		if d < maxDD {
			maxDD = d
		}

		inDrawdown := d < 0
		if inDrawdown && spanStart < 0 {
			spanStart = i
		}
		if spanStart >= 0 {
			end := i
			if inDrawdown && i == len(dd)-1 {
				end = i // open-ended: count through the last date
			} else if inDrawdown {
				continue
			} else {
				end = i - 1
			}
			days := int(returns.Dates[end].Sub(returns.Dates[spanStart]).Hours()/24) + 1
			if days > longest {
				longest = days
			}
			spanStart = -1
		}
	}

	return maxDD, longest
}

// turnoverStats annualizes one-way turnover over the weights history and
// counts material trades.
func turnoverStats(history []WeightsRecord) (float64, int) {
	totalTurnover := 0.0
	trades := 0

	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		totalTurnover += Turnover(prev.Weights, cur.Weights)

		symbols := make(map[string]struct{})
		for s := range prev.Weights {
			symbols[s] = struct{}{}
		}
		for s := range cur.Weights {
			symbols[s] = struct{}{}
		}
		for s := range symbols {
			if math.Abs(cur.Weights[s]-prev.Weights[s]) > config.TradeMaterialityThreshold {
				trades++
			}
		}
	}

	years := history[len(history)-1].Date.Sub(history[0].Date).Hours() / 24 / 365.25
	if years <= 0 {
		return totalTurnover, trades
	}
	return totalTurnover / years, trades
}

// applyBenchmarkStats computes Jensen's alpha, beta, tracking error, and
// information ratio over the inner-joined date index.
func applyBenchmarkStats(m *PerformanceMetrics, returns, benchmark ReturnSeries, rfPeriod, ppy float64) {
	p, b := Align(returns, benchmark)
	if p.Len() < config.MinMetricObservations {
		return
	}

	m.HasBenchmark = true

	pMean, _ := meanStd(p.Values)
	bMean, bStd := meanStd(b.Values)

	cov := 0.0
	for i := range p.Values {
		cov += (p.Values[i] - pMean) * (b.Values[i] - bMean)
	}
	cov /= float64(len(p.Values))

	if bStd > 0 {
		m.Beta = cov / (bStd * bStd)
	}
	m.Alpha = (pMean - rfPeriod - m.Beta*(bMean-rfPeriod)) * ppy

	active := make([]float64, len(p.Values))
	for i := range active {
		active[i] = p.Values[i] - b.Values[i]
	}
	aMean, aStd := meanStd(active)

	m.TrackingError = aStd * math.Sqrt(ppy)
	if m.TrackingError > 0 {
		m.InformationRatio = aMean * ppy / m.TrackingError
	}
}

func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

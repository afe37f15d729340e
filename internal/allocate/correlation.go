package allocate

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/universe"
)

// minCorrObservations is the overlap below which a pairwise sample
// correlation is considered noise and the sector proxy is used instead.
const minCorrObservations = 60

// CorrelationBuilder estimates the correlation and covariance structure for a
// selected set of securities. Sample correlations (shrunk toward identity)
// are used wherever both symbols have return history; remaining pairs fall
// back to fixed intra/inter-sector proxy constants.
type CorrelationBuilder struct {
	cfg    *config.Config
	prices *data.PriceMatrix
}

// NewCorrelationBuilder creates a builder over the run's price matrix.
func NewCorrelationBuilder(cfg *config.Config, prices *data.PriceMatrix) *CorrelationBuilder {
	return &CorrelationBuilder{cfg: cfg, prices: prices}
}

// Build returns (correlation, covariance) over the securities in order, as of
// the snapshot date. Covariance is assembled from annualized volatilities
// (default constant when history is missing) and the blended correlations.
func (b *CorrelationBuilder) Build(securities []*universe.Security, asOf int) (*mat.SymDense, *mat.SymDense) {
	n := len(securities)
	corr := mat.NewSymDense(n, nil)
	cov := mat.NewSymDense(n, nil)

	returns := make([][]float64, n)
	vols := make([]float64, n)
	for i, sec := range securities {
		returns[i] = b.alignedReturns(sec.Symbol, asOf)
		vols[i] = config.DefaultVolatility
		if obs := compact(returns[i]); len(obs) >= minCorrObservations {
			vols[i] = math.Sqrt(stat.Variance(obs, nil)) * math.Sqrt(252)
		}
	}

	lambda := b.cfg.Shrinkage
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			c, ok := pairwiseCorrelation(returns[i], returns[j])
			if ok {
				// Linear shrinkage toward identity: off-diagonal shrinks
				// toward zero.
				c = (1 - lambda) * c
			} else {
				c = b.sectorProxy(securities[i], securities[j])
			}
			corr.SetSym(i, j, c)
		}
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, corr.At(i, j)*vols[i]*vols[j])
		}
	}

	return corr, cov
}

// alignedReturns returns the lookback window of daily returns ending at asOf,
// NaN where undefined, so pairwise overlap can be computed positionally.
func (b *CorrelationBuilder) alignedReturns(symbol string, asOf int) []float64 {
	lookback := b.cfg.CorrLookbackDays
	out := make([]float64, 0, lookback)
	start := asOf - lookback + 1
	if start < 1 {
		start = 1
	}
	for i := start; i <= asOf; i++ {
		out = append(out, b.prices.DailyReturn(i, symbol))
	}
	return out
}

// pairwiseCorrelation computes sample correlation over positions where both
// series are defined. Returns ok=false below the observation floor.
func pairwiseCorrelation(a, b []float64) (float64, bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}

	if len(xs) < minCorrObservations {
		return 0, false
	}

	c := stat.Correlation(xs, ys, nil)
	if math.IsNaN(c) {
		return 0, false
	}
	return c, true
}

func (b *CorrelationBuilder) sectorProxy(x, y *universe.Security) float64 {
	if x.Sector != "" && x.Sector == y.Sector {
		return b.cfg.IntraSectorCorr
	}
	return b.cfg.InterSectorCorr
}

func compact(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

package scoring

import (
	"math"
	"sort"

	"github.com/alphaforge/smartmoney/internal/universe"
)

// FactorScorer attaches exactly one score column named "score_<name>" to a
// snapshot. Scores are bounded [0,1]; the risk score is inverted, 1 = safe.
// Scorers are pure per snapshot and hold no cross-rebalance state.
type FactorScorer interface {
	Name() string
	Score(snap *universe.Snapshot) error
}

// ColumnName is the score column convention for a factor.
func ColumnName(factor string) string { return "score_" + factor }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// percentileRanks maps raw values to their cross-sectional percentile in
// [0,1]. Ties share their average rank. NaN inputs rank 0. A single
// observation ranks 0.5.
func percentileRanks(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = 0.5
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		va, vb := values[idx[a]], values[idx[b]]
		if math.IsNaN(va) {
			return true
		}
		if math.IsNaN(vb) {
			return false
		}
		return va < vb
	})

	for start := 0; start < n; {
		end := start
		for end+1 < n && values[idx[end+1]] == values[idx[start]] {
			end++
		}
		avg := float64(start+end) / 2 / float64(n-1)
		for k := start; k <= end; k++ {
			i := idx[k]
			if math.IsNaN(values[i]) {
				out[i] = 0
			} else {
				out[i] = avg
			}
		}
		start = end + 1
	}
	return out
}

// attach writes one column across the snapshot.
func attach(snap *universe.Snapshot, factor string, values []float64) {
	col := ColumnName(factor)
	for i, sec := range snap.Securities {
		sec.Scores[col] = values[i]
	}
}

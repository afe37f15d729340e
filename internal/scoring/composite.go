package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/universe"
)

// CompositeColumn is the column the aggregator writes.
const CompositeColumn = "score_composite"

// PureColumn is the secondary equal-weight score over the fundamental subset.
const PureColumn = "score_pure"

// pureFactors is the fixed subset averaged into the pure score.
var pureFactors = []string{"value", "quality", "risk"}

// Composite combines factor score columns into one ranking score. Weights are
// validated at construction: they must sum to 1.0 within 1e-3 and none may be
// negative (an inverted factor is inverted at its source, never here).
type Composite struct {
	weights   map[string]float64
	useZScore bool
}

// NewComposite validates the weights and creates the aggregator. Invalid
// weights fail here, before any scoring occurs.
func NewComposite(weights map[string]float64, useZScore bool) (*Composite, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("composite weights must not be empty")
	}

	sum := 0.0
	for name, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("composite factor %s has negative weight %.3f", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-3 {
		return nil, fmt.Errorf("composite weights sum to %.4f, expected 1.0 ± 0.001", sum)
	}

	return &Composite{weights: weights, useZScore: useZScore}, nil
}

// Ranked pairs a security with its composite score and dense rank (1 = best).
type Ranked struct {
	Security *universe.Security
	Score    float64
	Rank     int
}

// Aggregate computes the weighted composite, attaches it to the snapshot, and
// returns the securities in rank order. When a configured factor's column is
// absent, its weight is redistributed proportionally across the available
// factors so their relative importance is preserved.
func (c *Composite) Aggregate(snap *universe.Snapshot) ([]Ranked, error) {
	if snap.Len() == 0 {
		return nil, fmt.Errorf("cannot aggregate an empty snapshot")
	}

	available, missing := c.splitAvailable(snap)
	if len(available) == 0 {
		return nil, fmt.Errorf("no configured factor columns present in snapshot")
	}
	if len(missing) > 0 {
		log.Warn().Strs("missing_factors", missing).Strs("available", available).
			Msg("redistributing weights of absent factors")
	}

	weights := c.redistribute(available)

	columns := make(map[string][]float64, len(available))
	for _, factor := range available {
		col := extractColumn(snap, ColumnName(factor))
		if c.useZScore {
			col = zscore(col)
		}
		columns[factor] = col
	}

	scores := make([]float64, snap.Len())
	for i := range scores {
		for factor, w := range weights {
			scores[i] += w * columns[factor][i]
		}
	}
	attach(snap, "composite", scores)

	return rankDense(snap, scores), nil
}

// PureScore attaches the unweighted average of the value/quality/risk columns
// that are present, independent of the active composite weights. Returns the
// factors actually used.
func (c *Composite) PureScore(snap *universe.Snapshot) []string {
	var used []string
	for _, factor := range pureFactors {
		if columnPresent(snap, ColumnName(factor)) {
			used = append(used, factor)
		}
	}
	if len(used) == 0 {
		return nil
	}

	values := make([]float64, snap.Len())
	for i, sec := range snap.Securities {
		sum := 0.0
		for _, factor := range used {
			sum += sec.Scores[ColumnName(factor)]
		}
		values[i] = sum / float64(len(used))
	}
	attach(snap, "pure", values)
	return used
}

func (c *Composite) splitAvailable(snap *universe.Snapshot) (available, missing []string) {
	for factor := range c.weights {
		if columnPresent(snap, ColumnName(factor)) {
			available = append(available, factor)
		} else {
			missing = append(missing, factor)
		}
	}
	sort.Strings(available)
	sort.Strings(missing)
	return available, missing
}

// redistribute scales the available factors' weights so they sum to 1,
// preserving their relative proportions.
func (c *Composite) redistribute(available []string) map[string]float64 {
	total := 0.0
	for _, factor := range available {
		total += c.weights[factor]
	}

	out := make(map[string]float64, len(available))
	if total <= 0 {
		for _, factor := range available {
			out[factor] = 1.0 / float64(len(available))
		}
		return out
	}
	for _, factor := range available {
		out[factor] = c.weights[factor] / total
	}
	return out
}

func columnPresent(snap *universe.Snapshot, col string) bool {
	for _, sec := range snap.Securities {
		if _, ok := sec.Scores[col]; ok {
			return true
		}
	}
	return false
}

func extractColumn(snap *universe.Snapshot, col string) []float64 {
	out := make([]float64, snap.Len())
	for i, sec := range snap.Securities {
		out[i] = sec.Scores[col] // absent entries contribute zero
	}
	return out
}

// zscore standardizes a column; all-zero when the deviation is zero so a
// constant factor cannot dominate the composite.
func zscore(values []float64) []float64 {
	n := float64(len(values))
	if n == 0 {
		return values
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
	std := math.Sqrt(ss / n)

	out := make([]float64, len(values))
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// rankDense assigns dense ranks (1 = best) on descending score.
func rankDense(snap *universe.Snapshot, scores []float64) []Ranked {
	ranked := make([]Ranked, snap.Len())
	for i, sec := range snap.Securities {
		ranked[i] = Ranked{Security: sec, Score: scores[i]}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		// Deterministic tie-break on symbol.
		return ranked[a].Security.Symbol < ranked[b].Security.Symbol
	})

	rank := 0
	prev := math.Inf(1)
	for i := range ranked {
		if ranked[i].Score != prev {
			rank++
			prev = ranked[i].Score
		}
		ranked[i].Rank = rank
	}
	return ranked
}

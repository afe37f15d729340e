package allocate

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/scoring"
	"github.com/alphaforge/smartmoney/internal/universe"
)

// Allocator turns a selected set of scored securities into capped, normalized
// portfolio weights: base HRP from the estimated correlation structure, a
// composite-score tilt, then a single clip-and-renormalize capping pass.
type Allocator struct {
	cfg  *config.Config
	corr *CorrelationBuilder
}

// NewAllocator creates an allocator over the run's price matrix.
func NewAllocator(cfg *config.Config, prices *data.PriceMatrix) *Allocator {
	return &Allocator{cfg: cfg, corr: NewCorrelationBuilder(cfg, prices)}
}

// Allocate computes weights for the selected securities as of the given price
// index. Selected securities must carry the composite score column.
func (a *Allocator) Allocate(selected []*universe.Security, asOf int) (map[string]float64, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("cannot allocate over zero securities")
	}
	if len(selected) == 1 {
		return map[string]float64{selected[0].Symbol: 1}, nil
	}

	corr, cov := a.corr.Build(selected, asOf)
	base, err := HRPWeights(cov, corr)
	if err != nil {
		return nil, fmt.Errorf("HRP allocation failed: %w", err)
	}

	tilted := a.tilt(base, selected)
	capped := capAndRenormalize(tilted, a.cfg.MaxPositionWeight)
	capped = a.capSectors(capped, selected)

	out := make(map[string]float64, len(selected))
	for i, sec := range selected {
		out[sec.Symbol] = capped[i]
	}
	return out, nil
}

// capSectors scales down any sector whose total weight exceeds the sector cap
// and renormalizes once. Like the position cap this is a single pass; the
// renormalization can push a capped sector slightly back over and that
// overshoot is accepted.
func (a *Allocator) capSectors(weights []float64, selected []*universe.Security) []float64 {
	cap := a.cfg.MaxSectorWeight
	if cap <= 0 || cap >= 1 {
		return weights
	}

	sums := make(map[string]float64)
	for i, sec := range selected {
		sums[sec.Sector] += weights[i]
	}

	scaled := 0
	out := make([]float64, len(weights))
	for i, sec := range selected {
		if sum := sums[sec.Sector]; sum > cap {
			out[i] = weights[i] * cap / sum
			scaled++
		} else {
			out[i] = weights[i]
		}
	}
	if scaled == 0 {
		return weights
	}

	log.Debug().Int("positions_scaled", scaled).Float64("cap", cap).
		Msg("sector weights scaled to cap")
	normalize(out)
	return out
}

// tilt multiplies HRP weights by a composite-score tilt: exponential in
// z-score mode, linear score/mean otherwise. The result is renormalized.
func (a *Allocator) tilt(base []float64, selected []*universe.Security) []float64 {
	scores := make([]float64, len(selected))
	for i, sec := range selected {
		scores[i] = sec.Scores[scoring.CompositeColumn]
	}

	out := make([]float64, len(base))
	if a.cfg.UseZScore {
		mean, std := meanStd(scores)
		for i := range out {
			z := 0.0
			if std > 0 {
				z = (scores[i] - mean) / std
			}
			out[i] = base[i] * math.Exp(a.cfg.TiltAlpha*z)
		}
	} else {
		mean, _ := meanStd(scores)
		for i := range out {
			factor := 1.0
			if mean != 0 {
				factor = scores[i] / mean
			}
			if factor < 0 {
				factor = 0
			}
			out[i] = base[i] * factor
		}
	}

	normalize(out)
	return out
}

// capAndRenormalize clips weights above the cap and renormalizes once. When
// many names hit the cap simultaneously the renormalized weights can slightly
// exceed the nominal cap; that overshoot is accepted rather than iterated
// away.
func capAndRenormalize(weights []float64, cap float64) []float64 {
	out := make([]float64, len(weights))
	clipped := 0
	for i, w := range weights {
		if w > cap {
			out[i] = cap
			clipped++
		} else {
			out[i] = w
		}
	}
	if clipped > 0 {
		log.Debug().Int("clipped", clipped).Float64("cap", cap).
			Msg("position weights clipped to cap")
	}
	normalize(out)
	return out
}

func normalize(weights []float64) {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(len(weights))
		}
		return
	}
	for i := range weights {
		weights[i] /= sum
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

package scoring

import (
	"math"

	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/universe"
)

// SmartMoneyScorer scores institutional accumulation: hedge fund breadth,
// aggregate share-count change, and superinvestor buys.
type SmartMoneyScorer struct {
	holdings *data.HoldingsSet
}

// NewSmartMoneyScorer creates the scorer over a holdings feed.
func NewSmartMoneyScorer(holdings *data.HoldingsSet) *SmartMoneyScorer {
	return &SmartMoneyScorer{holdings: holdings}
}

func (s *SmartMoneyScorer) Name() string { return "smartmoney" }

func (s *SmartMoneyScorer) Score(snap *universe.Snapshot) error {
	values := make([]float64, snap.Len())
	for i, sec := range snap.Securities {
		row, ok := s.holdings.BySymbol(sec.Symbol)
		if !ok {
			values[i] = 0 // no institutional footprint, no signal
			continue
		}

		breadth := math.Min(float64(row.FundCount)/20.0, 1)
		accumulation := clamp01(0.5 + row.FundShareDelta*2)
		conviction := math.Min(float64(row.SuperinvestorBuys)/5.0, 1)

		values[i] = clamp01(0.4*breadth + 0.4*accumulation + 0.2*conviction)
	}
	attach(snap, s.Name(), values)
	return nil
}

// InsiderScorer scores open-market insider activity. Net buying by count and
// by dollar value both contribute.
type InsiderScorer struct {
	holdings *data.HoldingsSet
}

// NewInsiderScorer creates the scorer over a holdings feed.
func NewInsiderScorer(holdings *data.HoldingsSet) *InsiderScorer {
	return &InsiderScorer{holdings: holdings}
}

func (s *InsiderScorer) Name() string { return "insider" }

func (s *InsiderScorer) Score(snap *universe.Snapshot) error {
	values := make([]float64, snap.Len())
	for i, sec := range snap.Securities {
		row, ok := s.holdings.BySymbol(sec.Symbol)
		if !ok {
			values[i] = 0.5 // insider silence is neutral, not bearish
			continue
		}

		total := row.InsiderBuys + row.InsiderSells
		countSignal := 0.5
		if total > 0 {
			countSignal = float64(row.InsiderBuys) / float64(total)
		}

		valueSignal := 0.5
		if row.InsiderNetValue > 0 {
			valueSignal = 1
		} else if row.InsiderNetValue < 0 {
			valueSignal = 0
		}

		values[i] = clamp01(0.6*countSignal + 0.4*valueSignal)
	}
	attach(snap, s.Name(), values)
	return nil
}

// MomentumScorer ranks 12-minus-1 price momentum cross-sectionally: the
// return from roughly 12 months ago to 1 month ago, skipping the most recent
// month's reversal.
type MomentumScorer struct {
	prices *data.PriceMatrix
}

// NewMomentumScorer creates the scorer over the run's price matrix.
func NewMomentumScorer(prices *data.PriceMatrix) *MomentumScorer {
	return &MomentumScorer{prices: prices}
}

func (s *MomentumScorer) Name() string { return "momentum" }

func (s *MomentumScorer) Score(snap *universe.Snapshot) error {
	end := s.prices.IndexOnOrBefore(snap.AsOf)

	raw := make([]float64, snap.Len())
	for i, sec := range snap.Securities {
		raw[i] = math.NaN()
		if end < 0 {
			continue
		}
		recent := end - 21
		past := end - 252
		if past < 0 {
			continue
		}
		pPast := s.prices.Price(past, sec.Symbol)
		pRecent := s.prices.Price(recent, sec.Symbol)
		if math.IsNaN(pPast) || math.IsNaN(pRecent) || pPast <= 0 {
			continue
		}
		raw[i] = pRecent/pPast - 1
	}

	attach(snap, s.Name(), percentileRanks(raw))
	return nil
}

// ValueScorer ranks earnings yield and FCF yield cross-sectionally.
type ValueScorer struct{}

// NewValueScorer creates the scorer.
func NewValueScorer() *ValueScorer { return &ValueScorer{} }

func (s *ValueScorer) Name() string { return "value" }

func (s *ValueScorer) Score(snap *universe.Snapshot) error {
	earnings := make([]float64, snap.Len())
	fcf := make([]float64, snap.Len())

	for i, sec := range snap.Securities {
		earnings[i] = math.NaN()
		fcf[i] = math.NaN()
		if sec.MarketCap <= 0 {
			continue
		}
		earnings[i] = sec.Fundamentals.NetIncome / sec.MarketCap
		fcf[i] = sec.Fundamentals.FCF / sec.MarketCap
	}

	eRank := percentileRanks(earnings)
	fRank := percentileRanks(fcf)

	values := make([]float64, snap.Len())
	for i := range values {
		values[i] = clamp01(0.5*eRank[i] + 0.5*fRank[i])
	}
	attach(snap, s.Name(), values)
	return nil
}

// QualityScorer ranks return on equity and net margin cross-sectionally.
type QualityScorer struct{}

// NewQualityScorer creates the scorer.
func NewQualityScorer() *QualityScorer { return &QualityScorer{} }

func (s *QualityScorer) Name() string { return "quality" }

func (s *QualityScorer) Score(snap *universe.Snapshot) error {
	roe := make([]float64, snap.Len())
	margin := make([]float64, snap.Len())

	for i, sec := range snap.Securities {
		fu := sec.Fundamentals
		roe[i] = math.NaN()
		margin[i] = math.NaN()
		if fu.Equity > 0 {
			roe[i] = fu.NetIncome / fu.Equity
		}
		if fu.Revenue > 0 {
			margin[i] = fu.NetIncome / fu.Revenue
		}
	}

	roeRank := percentileRanks(roe)
	marginRank := percentileRanks(margin)

	values := make([]float64, snap.Len())
	for i := range values {
		values[i] = clamp01(0.6*roeRank[i] + 0.4*marginRank[i])
	}
	attach(snap, s.Name(), values)
	return nil
}

// RiskScorer ranks leverage and realized volatility, inverted so 1 = safe.
// Symbols without return history assume the default volatility constant.
type RiskScorer struct {
	prices *data.PriceMatrix
}

// NewRiskScorer creates the scorer. prices may be nil, in which case only
// leverage contributes.
func NewRiskScorer(prices *data.PriceMatrix) *RiskScorer {
	return &RiskScorer{prices: prices}
}

func (s *RiskScorer) Name() string { return "risk" }

func (s *RiskScorer) Score(snap *universe.Snapshot) error {
	leverage := make([]float64, snap.Len())
	vol := make([]float64, snap.Len())

	end := -1
	if s.prices != nil {
		end = s.prices.IndexOnOrBefore(snap.AsOf)
	}

	for i, sec := range snap.Securities {
		fu := sec.Fundamentals
		if fu.Equity > 0 {
			leverage[i] = fu.TotalDebt / fu.Equity
		} else {
			leverage[i] = math.NaN() // ranks worst after inversion below
		}

		vol[i] = config.DefaultVolatility
		if s.prices != nil && end > 0 {
			if hist := s.prices.ReturnHistory(sec.Symbol, end, 252); len(hist) >= 60 {
				vol[i] = annualizedVol(hist)
			}
		}
	}

	// NaN leverage means negative equity; force it to the risky extreme.
	maxLev := 0.0
	for _, l := range leverage {
		if !math.IsNaN(l) && l > maxLev {
			maxLev = l
		}
	}
	for i, l := range leverage {
		if math.IsNaN(l) {
			leverage[i] = maxLev + 1
		}
	}

	levRank := percentileRanks(leverage)
	volRank := percentileRanks(vol)

	values := make([]float64, snap.Len())
	for i := range values {
		// Invert: high leverage and high volatility rank near 0.
		values[i] = clamp01(1 - (0.5*levRank[i] + 0.5*volRank[i]))
	}
	attach(snap, s.Name(), values)
	return nil
}

func annualizedVol(returns []float64) float64 {
	if len(returns) < 2 {
		return config.DefaultVolatility
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	ss := 0.0
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(returns)-1)) * math.Sqrt(252)
}

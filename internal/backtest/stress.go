package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/config"
)

// StressMode selects which threshold a window checks.
type StressMode string

const (
	// DrawdownMode passes when the window's max drawdown stays at or above
	// the acceptable floor.
	DrawdownMode StressMode = "drawdown"
	// RecoveryMode passes when the window's cumulative return reaches the
	// minimum capture.
	RecoveryMode StressMode = "recovery"
)

// StressWindow is one named historical episode with a pass threshold.
type StressWindow struct {
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	Mode        StressMode
	// MaxAcceptableDD (negative) applies in DrawdownMode; MinCumReturn
	// applies in RecoveryMode.
	MaxAcceptableDD float64
	MinCumReturn    float64
}

// DefaultStressWindows returns the fixed historical episode table.
func DefaultStressWindows() []StressWindow {
	d := func(y int, m time.Month, day int) time.Time {
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return []StressWindow{
		{
			Name: "dotcom_bust", Description: "Tech bubble unwind",
			Start: d(2000, 3, 24), End: d(2002, 10, 9),
			Mode: DrawdownMode, MaxAcceptableDD: -0.45,
		},
		{
			Name: "gfc", Description: "Global financial crisis",
			Start: d(2007, 10, 9), End: d(2009, 3, 9),
			Mode: DrawdownMode, MaxAcceptableDD: -0.50,
		},
		{
			Name: "q4_2018", Description: "Rate-hike selloff",
			Start: d(2018, 9, 20), End: d(2018, 12, 24),
			Mode: DrawdownMode, MaxAcceptableDD: -0.25,
		},
		{
			Name: "covid_crash", Description: "COVID-19 crash",
			Start: d(2020, 2, 19), End: d(2020, 3, 23),
			Mode: DrawdownMode, MaxAcceptableDD: -0.40,
		},
		{
			Name: "covid_recovery", Description: "Post-COVID rebound capture",
			Start: d(2020, 3, 23), End: d(2020, 8, 31),
			Mode: RecoveryMode, MinCumReturn: 0.20,
		},
		{
			Name: "rates_2022", Description: "2022 rate shock",
			Start: d(2022, 1, 3), End: d(2022, 10, 12),
			Mode: DrawdownMode, MaxAcceptableDD: -0.30,
		},
	}
}

// StressWindowResult is one evaluated (or skipped) window.
type StressWindowResult struct {
	Name         string  `json:"name"`
	Evaluated    bool    `json:"evaluated"`
	Passed       bool    `json:"passed"`
	Observations int     `json:"observations"`
	CumReturn    float64 `json:"cum_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Notes        string  `json:"notes"`
}

// StressTestSuite aggregates the window verdicts. The suite passes only when
// the pass rate over evaluated windows reaches the floor AND no window
// breached the absolute drawdown hard limit; both conditions are required.
type StressTestSuite struct {
	Results           []StressWindowResult `json:"results"`
	Evaluated         int                  `json:"evaluated"`
	PassedCount       int                  `json:"passed_count"`
	PassRate          float64              `json:"pass_rate"`
	HardLimitBreached bool                 `json:"hard_limit_breached"`
	Passed            bool                 `json:"passed"`
}

// StressTester replays a return series through the historical episode table.
type StressTester struct {
	windows   []StressWindow
	hardLimit float64
}

// NewStressTester creates a tester. Passing nil windows uses the default
// table; hardLimit of 0 uses the default absolute drawdown limit.
func NewStressTester(windows []StressWindow, hardLimit float64) *StressTester {
	if windows == nil {
		windows = DefaultStressWindows()
	}
	if hardLimit == 0 {
		hardLimit = config.StressHardDrawdownLimit
	}
	return &StressTester{windows: windows, hardLimit: hardLimit}
}

// Run evaluates every window against the return series. Windows with fewer
// than 3 observations are skipped with a warning; not every backtest period
// covers every historical crisis.
func (st *StressTester) Run(returns ReturnSeries) *StressTestSuite {
	suite := &StressTestSuite{}

	for _, w := range st.windows {
		slice := returns.Slice(w.Start, w.End)
		result := StressWindowResult{Name: w.Name, Observations: slice.Len()}

		if slice.Len() < 3 {
			result.Notes = fmt.Sprintf("skipped: %d observations in window", slice.Len())
			log.Warn().Str("window", w.Name).Int("observations", slice.Len()).
				Msg("stress window skipped, too few observations")
			suite.Results = append(suite.Results, result)
			continue
		}

		result.Evaluated = true
		result.CumReturn = slice.TotalReturn()
		result.MaxDrawdown = minOf(slice.Drawdowns())

		switch w.Mode {
		case RecoveryMode:
			result.Passed = result.CumReturn >= w.MinCumReturn
			result.Notes = fmt.Sprintf("%s: captured %.1f%% vs %.1f%% required",
				w.Description, result.CumReturn*100, w.MinCumReturn*100)
		default:
			result.Passed = result.MaxDrawdown >= w.MaxAcceptableDD
			result.Notes = fmt.Sprintf("%s: drawdown %.1f%% vs %.1f%% acceptable",
				w.Description, result.MaxDrawdown*100, w.MaxAcceptableDD*100)
		}

		if result.MaxDrawdown < st.hardLimit {
			suite.HardLimitBreached = true
		}

		suite.Evaluated++
		if result.Passed {
			suite.PassedCount++
		}
		suite.Results = append(suite.Results, result)
	}

	if suite.Evaluated > 0 {
		suite.PassRate = float64(suite.PassedCount) / float64(suite.Evaluated)
	}
	suite.Passed = suite.PassRate >= config.StressPassRate && !suite.HardLimitBreached

	log.Info().Int("evaluated", suite.Evaluated).Int("passed", suite.PassedCount).
		Bool("hard_limit_breached", suite.HardLimitBreached).Bool("suite_passed", suite.Passed).
		Msg("stress test complete")

	return suite
}

func minOf(values []float64) float64 {
	out := 0.0
	for _, v := range values {
		out = math.Min(out, v)
	}
	return out
}

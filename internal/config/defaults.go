package config

// Estimation fallbacks used when a fundamental line item is missing. These are
// documented proxies, centralized so tests can assert on them; never inline the
// literals at call sites.
const (
	// EBITDAFromEBITMultiple approximates EBITDA as EBIT x 1.2 when EBITDA is
	// not separately reported.
	EBITDAFromEBITMultiple = 1.2

	// InterestFromDebtRate estimates annual interest expense as 5% of total
	// debt when the line item is missing.
	InterestFromDebtRate = 0.05

	// DefaultVolatility is the annualized volatility assumed for symbols with
	// no usable return history.
	DefaultVolatility = 0.25

	// IntraSectorCorrelation / InterSectorCorrelation are the proxy pairwise
	// correlations for symbols lacking return history.
	IntraSectorCorrelation = 0.70
	InterSectorCorrelation = 0.40

	// CorrelationShrinkage is the default linear shrinkage toward identity.
	CorrelationShrinkage = 0.20

	// AnnualReportLagDays / QuarterlyReportLagDays model the delay between a
	// fiscal period end and public availability of the figures.
	AnnualReportLagDays    = 60
	QuarterlyReportLagDays = 45

	// MaxYearLookback bounds the backward search for the latest publicly
	// available fiscal year.
	MaxYearLookback = 5

	// SortinoEpsilon floors the downside deviation when a series has no
	// negative returns.
	SortinoEpsilon = 0.001

	// MinMetricObservations is the floor below which performance metrics are
	// meaningless and refused.
	MinMetricObservations = 10

	// TradeMaterialityThreshold is the minimum absolute weight change counted
	// as a trade.
	TradeMaterialityThreshold = 0.01

	// StressHardDrawdownLimit fails the whole stress suite when breached in
	// any window, regardless of per-window verdicts.
	StressHardDrawdownLimit = -0.35

	// StressPassRate is the minimum fraction of evaluated windows that must
	// pass for the suite to pass.
	StressPassRate = 0.70
)

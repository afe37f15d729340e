package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// RebalanceFrequency selects the rebalancing calendar.
type RebalanceFrequency string

const (
	Quarterly RebalanceFrequency = "Q"
	Monthly   RebalanceFrequency = "M"
	Weekly    RebalanceFrequency = "W"
)

// Config is the single validated configuration object for a backtest run.
// It is constructed once and passed by reference; no component reads ambient
// global state.
type Config struct {
	// Portfolio construction
	Rebalance         RebalanceFrequency `yaml:"rebalance"`
	TransactionCostBp float64            `yaml:"transaction_cost_bps"`
	MinPositions      int                `yaml:"min_positions"`
	MaxPositions      int                `yaml:"max_positions"`
	MaxPositionWeight float64            `yaml:"max_position_weight"`
	MaxSectorWeight   float64            `yaml:"max_sector_weight"`

	// Look-ahead model
	PublicationLagDays int `yaml:"publication_lag_days"`
	MaxYearLookback    int `yaml:"max_year_lookback"`
	FiscalYearEndMonth int `yaml:"fiscal_year_end_month"`
	FiscalYearEndDay   int `yaml:"fiscal_year_end_day"`

	// Correlation estimation
	Shrinkage       float64 `yaml:"correlation_shrinkage"`
	IntraSectorCorr float64 `yaml:"intra_sector_corr"`
	InterSectorCorr float64 `yaml:"inter_sector_corr"`
	CorrLookbackDays int    `yaml:"corr_lookback_days"`

	// Composite scoring
	FactorWeights map[string]float64 `yaml:"factor_weights"`
	UseZScore     bool               `yaml:"use_zscore"`
	TiltAlpha     float64            `yaml:"tilt_alpha"`

	// Universe filters
	MinMarketCap     float64 `yaml:"min_market_cap"`
	MinDollarVolume  float64 `yaml:"min_dollar_volume"`
	MaxVolumeImpact  float64 `yaml:"max_volume_impact"`
	PortfolioValue   float64 `yaml:"portfolio_value"`
	MaxDebtToEquity  float64 `yaml:"max_debt_to_equity"`
	MaxNetDebtEBITDA float64 `yaml:"max_net_debt_ebitda"`
	MinInterestCover float64 `yaml:"min_interest_coverage"`
	CleanData        bool    `yaml:"clean_data"`

	// Metrics
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	PeriodsPerYear int     `yaml:"periods_per_year"`

	// Stress testing
	StressHardLimit float64 `yaml:"stress_hard_limit"`

	// Price cache
	PriceCacheDir string `yaml:"price_cache_dir"`
	PriceCacheTTL string `yaml:"price_cache_ttl"`
	RedisAddr     string `yaml:"redis_addr"`

	// Persistence (optional)
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the baseline configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Rebalance:         Quarterly,
		TransactionCostBp: 10,
		MinPositions:      10,
		MaxPositions:      25,
		MaxPositionWeight: 0.10,
		MaxSectorWeight:   0.30,

		PublicationLagDays: AnnualReportLagDays,
		MaxYearLookback:    MaxYearLookback,
		FiscalYearEndMonth: 12,
		FiscalYearEndDay:   31,

		Shrinkage:        CorrelationShrinkage,
		IntraSectorCorr:  IntraSectorCorrelation,
		InterSectorCorr:  InterSectorCorrelation,
		CorrLookbackDays: 252,

		FactorWeights: map[string]float64{
			"smartmoney": 0.25,
			"insider":    0.10,
			"momentum":   0.15,
			"value":      0.20,
			"quality":    0.15,
			"risk":       0.15,
		},
		UseZScore: true,
		TiltAlpha: 0.5,

		MinMarketCap:     500e6,
		MinDollarVolume:  2e6,
		MaxVolumeImpact:  0.05,
		PortfolioValue:   10e6,
		MaxDebtToEquity:  2.0,
		MaxNetDebtEBITDA: 4.0,
		MinInterestCover: 2.5,
		CleanData:        true,

		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,

		StressHardLimit: StressHardDrawdownLimit,

		PriceCacheDir: "cache/prices",
		PriceCacheTTL: "24h",
	}
}

// Load reads and validates a YAML configuration file. Unset fields fall back
// to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate enforces construction-time invariants. Factor weight violations are
// programmer/config errors and must fail before any computation begins.
func (c *Config) Validate() error {
	switch c.Rebalance {
	case Quarterly, Monthly, Weekly:
	default:
		return fmt.Errorf("unknown rebalance frequency %q (want Q, M, or W)", c.Rebalance)
	}

	if len(c.FactorWeights) == 0 {
		return fmt.Errorf("factor_weights must not be empty")
	}

	sum := 0.0
	for name, w := range c.FactorWeights {
		if w < 0 {
			return fmt.Errorf("factor %s has negative weight %.3f", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-3 {
		return fmt.Errorf("factor weights sum to %.4f, expected 1.0 ± 0.001", sum)
	}

	if c.MinPositions <= 0 {
		return fmt.Errorf("min_positions must be positive, got %d", c.MinPositions)
	}
	if c.MaxPositions < c.MinPositions {
		return fmt.Errorf("max_positions %d below min_positions %d", c.MaxPositions, c.MinPositions)
	}
	if c.MaxPositionWeight <= 0 || c.MaxPositionWeight > 1 {
		return fmt.Errorf("max_position_weight %.3f outside (0, 1]", c.MaxPositionWeight)
	}
	if float64(c.MinPositions)*c.MaxPositionWeight < 1.0-1e-9 {
		return fmt.Errorf("min_positions %d x max_position_weight %.2f cannot reach full investment",
			c.MinPositions, c.MaxPositionWeight)
	}

	if c.Shrinkage < 0 || c.Shrinkage > 1 {
		return fmt.Errorf("correlation_shrinkage %.3f outside [0, 1]", c.Shrinkage)
	}
	if c.IntraSectorCorr < -1 || c.IntraSectorCorr > 1 || c.InterSectorCorr < -1 || c.InterSectorCorr > 1 {
		return fmt.Errorf("sector correlation fallbacks must be in [-1, 1]")
	}

	if c.PublicationLagDays < 0 {
		return fmt.Errorf("publication_lag_days must be non-negative, got %d", c.PublicationLagDays)
	}
	if c.MaxYearLookback <= 0 {
		return fmt.Errorf("max_year_lookback must be positive, got %d", c.MaxYearLookback)
	}
	if c.FiscalYearEndMonth < 1 || c.FiscalYearEndMonth > 12 {
		return fmt.Errorf("fiscal_year_end_month %d outside [1, 12]", c.FiscalYearEndMonth)
	}
	if c.FiscalYearEndDay < 1 || c.FiscalYearEndDay > 31 {
		return fmt.Errorf("fiscal_year_end_day %d outside [1, 31]", c.FiscalYearEndDay)
	}

	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods_per_year must be positive, got %d", c.PeriodsPerYear)
	}

	return nil
}

package main

import (
	"fmt"
	"math"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alphaforge/smartmoney/internal/backtest"
	"github.com/alphaforge/smartmoney/internal/config"
	"github.com/alphaforge/smartmoney/internal/data"
	"github.com/alphaforge/smartmoney/internal/data/validate"
	"github.com/alphaforge/smartmoney/internal/metrics"
	"github.com/alphaforge/smartmoney/internal/persistence/postgres"
	"github.com/alphaforge/smartmoney/internal/report"
	"github.com/alphaforge/smartmoney/internal/scoring"
)

func newBacktestCmd() *cobra.Command {
	var (
		pricesPath       string
		fundamentalsPath string
		holdingsPath     string
		benchmarkPath    string
		outputDir        string
		withStress       bool
		saveToStore      bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a walk-forward backtest",
		Long: `Run the full pipeline over CSV inputs: point-in-time universe
construction, filtering, factor scoring, HRP allocation, and performance
metrics. Artifacts are written under the output directory per run ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			prices, err := loadPrices(pricesPath)
			if err != nil {
				return err
			}

			fundamentals, err := loadFundamentals(fundamentalsPath, cfg)
			if err != nil {
				return err
			}

			var holdings *data.HoldingsSet
			if holdingsPath != "" {
				if holdings, err = loadHoldings(holdingsPath); err != nil {
					return err
				}
			}

			var benchmark *backtest.ReturnSeries
			if benchmarkPath != "" {
				if benchmark, err = loadBenchmark(benchmarkPath); err != nil {
					return err
				}
			}

			scorers, useQuality, err := buildScorers(cfg, prices, holdings)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			engine, err := backtest.NewEngine(backtest.EngineParams{
				Config:        cfg,
				Prices:        prices,
				Fundamentals:  fundamentals,
				Scorers:       scorers,
				Benchmark:     benchmark,
				Collector:     metrics.NewCollector(registry),
				QualityScreen: useQuality,
				RunStress:     withStress,
			})
			if err != nil {
				return err
			}

			result, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			dir, err := report.NewWriter(outputDir).Write(result)
			if err != nil {
				return err
			}
			log.Info().Str("dir", dir).Msg("artifacts written")

			if saveToStore {
				if cfg.PostgresDSN == "" {
					return fmt.Errorf("--save requires postgres_dsn in the config")
				}
				store, err := postgres.Connect(cmd.Context(), cfg.PostgresDSN)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.SaveRun(cmd.Context(), result); err != nil {
					return err
				}
				log.Info().Str("run_id", result.RunID).Msg("run saved")
			}

			printSummary(result)

			if !result.ValidationPassed {
				return fmt.Errorf("run %s failed validation", result.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pricesPath, "prices", "", "daily close prices CSV (date + one column per symbol)")
	cmd.Flags().StringVar(&fundamentalsPath, "fundamentals", "", "annual fundamentals CSV")
	cmd.Flags().StringVar(&holdingsPath, "holdings", "", "institutional/insider holdings CSV (optional)")
	cmd.Flags().StringVar(&benchmarkPath, "benchmark", "", "benchmark prices CSV with a single symbol column (optional)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "out/backtests", "artifact output directory")
	cmd.Flags().BoolVar(&withStress, "stress", false, "evaluate historical stress windows after the run")
	cmd.Flags().BoolVar(&saveToStore, "save", false, "persist the result to postgres")
	cmd.MarkFlagRequired("prices")
	cmd.MarkFlagRequired("fundamentals")

	return cmd
}

func loadPrices(path string) (*data.PriceMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prices file: %w", err)
	}
	defer f.Close()
	return data.ReadPricesCSV(f)
}

func loadFundamentals(path string, cfg *config.Config) (*data.FundamentalsSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fundamentals file: %w", err)
	}
	defer f.Close()

	set, err := data.ReadFundamentalsCSV(f)
	if err != nil {
		return nil, err
	}

	checker := validate.NewChecker(validate.DefaultCheckerConfig(), cfg.CleanData)
	cleaned, anomalies := checker.Check(set)
	if len(anomalies) > 0 {
		log.Info().Int("anomalies", len(anomalies)).Bool("clean", cfg.CleanData).
			Msg("fundamentals checked")
	}
	return cleaned, nil
}

func loadHoldings(path string) (*data.HoldingsSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings file: %w", err)
	}
	defer f.Close()
	return data.ReadHoldingsCSV(f)
}

// loadBenchmark reads a single-symbol price CSV and converts it to a daily
// return series.
func loadBenchmark(path string) (*backtest.ReturnSeries, error) {
	matrix, err := loadPrices(path)
	if err != nil {
		return nil, err
	}
	symbols := matrix.Symbols()
	if len(symbols) != 1 {
		return nil, fmt.Errorf("benchmark CSV must contain exactly one symbol, got %d", len(symbols))
	}

	var series backtest.ReturnSeries
	dates := matrix.Dates()
	for i := 1; i < len(dates); i++ {
		r := matrix.DailyReturn(i, symbols[0])
		if math.IsNaN(r) {
			continue
		}
		series.Append(dates[i], r)
	}
	return &series, nil
}

// buildScorers assembles the factor set. With a preset active, only the
// preset's scorers run; otherwise all factors with available inputs do.
// Holdings-based factors are dropped with a warning when no holdings file is
// supplied.
func buildScorers(cfg *config.Config, prices *data.PriceMatrix, holdings *data.HoldingsSet) ([]scoring.FactorScorer, bool, error) {
	wanted := []string{"smartmoney", "insider", "momentum", "value", "quality", "risk"}
	useQuality := true

	if flagPreset != "" {
		preset := config.Presets()[flagPreset]
		wanted = preset.Scorers
		useQuality = preset.UseQuality
	}

	var scorers []scoring.FactorScorer
	for _, name := range wanted {
		switch name {
		case "smartmoney", "insider":
			if holdings == nil {
				log.Warn().Str("factor", name).Msg("no holdings file, factor dropped")
				continue
			}
			if name == "smartmoney" {
				scorers = append(scorers, scoring.NewSmartMoneyScorer(holdings))
			} else {
				scorers = append(scorers, scoring.NewInsiderScorer(holdings))
			}
		case "momentum":
			scorers = append(scorers, scoring.NewMomentumScorer(prices))
		case "value":
			scorers = append(scorers, scoring.NewValueScorer())
		case "quality":
			scorers = append(scorers, scoring.NewQualityScorer())
		case "risk":
			scorers = append(scorers, scoring.NewRiskScorer(prices))
		default:
			return nil, false, fmt.Errorf("unknown factor %q", name)
		}
	}

	if len(scorers) == 0 {
		return nil, false, fmt.Errorf("no factor scorers available with the given inputs")
	}
	return scorers, useQuality, nil
}

func printSummary(result *backtest.Result) {
	m := result.Metrics
	fmt.Printf("\nRun %s  (%s to %s, %d periods)\n", result.RunID,
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"), m.NumPeriods)
	fmt.Printf("  CAGR          %8.2f%%\n", m.CAGR*100)
	fmt.Printf("  Sharpe        %8.2f\n", m.Sharpe)
	fmt.Printf("  Sortino       %8.2f\n", m.Sortino)
	fmt.Printf("  Max drawdown  %8.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("  Calmar        %8.2f\n", m.Calmar)
	fmt.Printf("  Turnover p.a. %8.2f\n", m.AnnualTurnover)
	if m.HasBenchmark {
		fmt.Printf("  Alpha         %8.2f%%  (beta %.2f, IR %.2f)\n", m.Alpha*100, m.Beta, m.InformationRatio)
	}
	if result.StressSuite != nil {
		fmt.Printf("  Stress        %d/%d windows passed (suite passed: %v)\n",
			result.StressSuite.PassedCount, result.StressSuite.Evaluated, result.StressSuite.Passed)
	}
	fmt.Printf("  Validation    %v\n", result.ValidationPassed)
}

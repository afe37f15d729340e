package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphaforge/smartmoney/internal/config"
	logsetup "github.com/alphaforge/smartmoney/internal/log"
)

const (
	appName = "smartmoney"
	version = "v3.0.0"
)

var (
	flagConfig   string
	flagLogLevel string
	flagPreset   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Factor-based equity portfolio backtester",
		Version: version,
		Long: `SmartMoney scores an equity universe on institutional holdings, insider
activity, momentum, value, quality, and balance-sheet risk, allocates with
hierarchical risk parity, and backtests the strategy walk-forward with
point-in-time fundamentals.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logsetup.Setup(flagLogLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (defaults used when empty)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagPreset, "preset", "", "strategy preset (v2.2|v2.3|v3.0)")

	rootCmd.AddCommand(newBacktestCmd(), newStressCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration from flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flagPreset != "" {
		if err := cfg.ApplyPreset(flagPreset); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

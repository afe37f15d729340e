package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphaforge/smartmoney/internal/backtest"
)

func newStressCmd() *cobra.Command {
	var resultPath string

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Replay a stored run through historical stress windows",
		Long: `Load a previously written result.json and evaluate its return series
against the built-in crisis window table. Exits non-zero when the suite fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(resultPath)
			if err != nil {
				return fmt.Errorf("failed to read result file: %w", err)
			}

			var result backtest.Result
			if err := json.Unmarshal(raw, &result); err != nil {
				return fmt.Errorf("failed to parse result file: %w", err)
			}

			suite := backtest.NewStressTester(nil, cfg.StressHardLimit).Run(result.Returns)

			fmt.Printf("\nStress suite for run %s\n", result.RunID)
			for _, r := range suite.Results {
				status := "SKIP"
				if r.Evaluated {
					status = "FAIL"
					if r.Passed {
						status = "PASS"
					}
				}
				fmt.Printf("  %-16s %-4s %s\n", r.Name, status, r.Notes)
			}
			fmt.Printf("\nPass rate %.0f%% over %d windows, hard limit breached: %v\n",
				suite.PassRate*100, suite.Evaluated, suite.HardLimitBreached)

			if !suite.Passed {
				return fmt.Errorf("stress suite failed")
			}
			fmt.Println("Stress suite passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&resultPath, "result", "", "path to a result.json produced by the backtest command")
	cmd.MarkFlagRequired("result")

	return cmd
}

// Package report renders backtest results to disk and serves them over HTTP.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alphaforge/smartmoney/internal/backtest"
)

// Writer renders run artifacts under outputDir/<run-id>/.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Write renders the full JSON result plus a markdown summary and returns the
// run's artifact directory.
func (w *Writer) Write(result *backtest.Result) (string, error) {
	dir := filepath.Join(w.outputDir, result.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "result.json"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(w.markdown(result)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report.md: %w", err)
	}

	return dir, nil
}

func (w *Writer) markdown(result *backtest.Result) string {
	var b strings.Builder
	m := result.Metrics

	fmt.Fprintf(&b, "# Backtest Report\n\n")
	fmt.Fprintf(&b, "**Run ID:** %s\n\n", result.RunID)
	fmt.Fprintf(&b, "**Period:** %s to %s (%d trading days)\n\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"), m.NumPeriods)

	b.WriteString("## Performance\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total Return | %.2f%% |\n", m.TotalReturn*100)
	fmt.Fprintf(&b, "| CAGR | %.2f%% |\n", m.CAGR*100)
	fmt.Fprintf(&b, "| Volatility | %.2f%% |\n", m.Volatility*100)
	fmt.Fprintf(&b, "| Sharpe | %.2f |\n", m.Sharpe)
	fmt.Fprintf(&b, "| Sortino | %.2f |\n", m.Sortino)
	fmt.Fprintf(&b, "| Max Drawdown | %.2f%% |\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "| Drawdown Duration | %d days |\n", m.DrawdownDays)
	fmt.Fprintf(&b, "| Calmar | %.2f |\n", m.Calmar)
	fmt.Fprintf(&b, "| Annual Turnover | %.2f |\n", m.AnnualTurnover)
	fmt.Fprintf(&b, "| Trades | %d |\n", m.TradeCount)

	if m.HasBenchmark {
		b.WriteString("\n## Versus Benchmark\n\n")
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Alpha (annualized) | %.2f%% |\n", m.Alpha*100)
		fmt.Fprintf(&b, "| Beta | %.2f |\n", m.Beta)
		fmt.Fprintf(&b, "| Tracking Error | %.2f%% |\n", m.TrackingError*100)
		fmt.Fprintf(&b, "| Information Ratio | %.2f |\n", m.InformationRatio)
	}

	if len(result.WeightsHistory) > 0 {
		last := result.WeightsHistory[len(result.WeightsHistory)-1]
		b.WriteString("\n## Final Portfolio\n\n")
		fmt.Fprintf(&b, "As of %s:\n\n", last.Date.Format("2006-01-02"))
		b.WriteString("| Symbol | Weight |\n|---|---|\n")
		for _, sym := range sortedSymbols(last.Weights) {
			fmt.Fprintf(&b, "| %s | %.2f%% |\n", sym, last.Weights[sym]*100)
		}
	}

	if result.StressSuite != nil {
		b.WriteString("\n## Stress Windows\n\n")
		b.WriteString("| Window | Evaluated | Passed | Max DD | Notes |\n|---|---|---|---|---|\n")
		for _, r := range result.StressSuite.Results {
			fmt.Fprintf(&b, "| %s | %v | %v | %.1f%% | %s |\n",
				r.Name, r.Evaluated, r.Passed, r.MaxDrawdown*100, r.Notes)
		}
		fmt.Fprintf(&b, "\nSuite pass rate %.0f%%, hard limit breached: %v, passed: %v\n",
			result.StressSuite.PassRate*100, result.StressSuite.HardLimitBreached, result.StressSuite.Passed)
	}

	if len(result.SkippedPeriods) > 0 {
		b.WriteString("\n## Skipped Rebalances\n\n")
		for _, sp := range result.SkippedPeriods {
			fmt.Fprintf(&b, "- %s: %s\n", sp.Date.Format("2006-01-02"), sp.Reason)
		}
	}

	b.WriteString("\n## Validation\n\n")
	fmt.Fprintf(&b, "Passed: %v\n\n", result.ValidationPassed)
	for _, note := range result.ValidationNotes {
		fmt.Fprintf(&b, "- %s\n", note)
	}

	return b.String()
}

// sortedSymbols orders by descending weight, symbol as tie-break so output is
// deterministic.
func sortedSymbols(weights map[string]float64) []string {
	symbols := make([]string, 0, len(weights))
	for sym := range weights {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if weights[symbols[i]] != weights[symbols[j]] {
			return weights[symbols[i]] > weights[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}

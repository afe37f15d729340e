package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphaforge/smartmoney/internal/backtest"
)

func sampleResult() *backtest.Result {
	day := time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	var returns backtest.ReturnSeries
	returns.Append(day, 0.01)
	returns.Append(day.AddDate(0, 0, 1), -0.005)

	return &backtest.Result{
		RunID:     "test-run-1",
		StartDate: day,
		EndDate:   day.AddDate(0, 0, 1),
		Returns:   returns,
		WeightsHistory: []backtest.WeightsRecord{
			{Date: day, Weights: map[string]float64{"AAA": 0.6, "BBB": 0.4}, Turnover: 0.5},
		},
		Metrics: &backtest.PerformanceMetrics{
			NumPeriods: 2, CAGR: 0.12, Sharpe: 1.1, MaxDrawdown: -0.08,
		},
		ValidationPassed: true,
		ValidationNotes:  []string{"all validation checks passed"},
	}
}

func TestWriterProducesArtifacts(t *testing.T) {
	w := NewWriter(t.TempDir())

	dir, err := w.Write(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "test-run-1", filepath.Base(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "result.json"))
	require.NoError(t, err)
	var decoded backtest.Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "test-run-1", decoded.RunID)
	assert.InDelta(t, 0.12, decoded.Metrics.CAGR, 1e-12)

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	report := string(md)
	assert.Contains(t, report, "test-run-1")
	assert.Contains(t, report, "CAGR | 12.00%")
	assert.Contains(t, report, "## Final Portfolio")
	assert.Contains(t, report, "AAA | 60.00%")
}

func TestMarkdownOrdersHoldingsByWeight(t *testing.T) {
	w := NewWriter(t.TempDir())
	result := sampleResult()

	md := w.markdown(result)
	aaa := indexOf(md, "| AAA |")
	bbb := indexOf(md, "| BBB |")
	require.GreaterOrEqual(t, aaa, 0)
	require.GreaterOrEqual(t, bbb, 0)
	assert.Less(t, aaa, bbb, "heavier position listed first")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cases := []struct {
		name    string
		weights map[string]float64
	}{
		{"sum_above_one", map[string]float64{"value": 0.9, "momentum": 0.6}},
		{"sum_below_one", map[string]float64{"value": 0.3, "momentum": 0.3}},
		{"negative_weight", map[string]float64{"value": 1.2, "risk": -0.2}},
		{"empty", map[string]float64{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.FactorWeights = tc.weights
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWeightTolerance(t *testing.T) {
	cfg := Default()
	cfg.FactorWeights = map[string]float64{"value": 0.5004, "momentum": 0.5001}
	assert.NoError(t, cfg.Validate(), "sum within 1e-3 of 1.0 must pass")
}

func TestValidateRejectsBadFrequency(t *testing.T) {
	cfg := Default()
	cfg.Rebalance = "D"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnreachableFullInvestment(t *testing.T) {
	cfg := Default()
	cfg.MinPositions = 5
	cfg.MaxPositionWeight = 0.10 // 5 x 0.10 = 0.5 < 1.0
	assert.Error(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smartmoney.yaml")

	yaml := `
rebalance: M
transaction_cost_bps: 25
factor_weights:
  value: 0.5
  momentum: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Monthly, cfg.Rebalance)
	assert.Equal(t, 25.0, cfg.TransactionCostBp)
	assert.Equal(t, 0.5, cfg.FactorWeights["value"])
	// Untouched fields keep defaults.
	assert.Equal(t, AnnualReportLagDays, cfg.PublicationLagDays)
	assert.Equal(t, 252, cfg.PeriodsPerYear)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("factor_weights:\n  value: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err, "weights summing to 1.5 must fail before any scoring occurs")
}

func TestApplyPreset(t *testing.T) {
	for _, name := range []string{"v2.2", "v2.3", "v3.0"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.ApplyPreset(name))
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := Default()
	assert.Error(t, cfg.ApplyPreset("v9.9"))
}

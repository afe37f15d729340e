package config

import "fmt"

// StrategyPreset names a scorer set, filter set, and factor weighting. The
// historical engine versions are plain data here: selecting a version never
// changes code paths, only this structure.
type StrategyPreset struct {
	Name          string             `yaml:"name"`
	Scorers       []string           `yaml:"scorers"`
	UseQuality    bool               `yaml:"use_quality_screen"`
	FactorWeights map[string]float64 `yaml:"factor_weights"`
	UseZScore     bool               `yaml:"use_zscore"`
}

// Presets returns the built-in strategy presets.
func Presets() map[string]StrategyPreset {
	return map[string]StrategyPreset{
		"v2.2": {
			Name:    "v2.2",
			Scorers: []string{"smartmoney", "momentum", "value"},
			FactorWeights: map[string]float64{
				"smartmoney": 0.40,
				"momentum":   0.30,
				"value":      0.30,
			},
			UseZScore: false,
		},
		"v2.3": {
			Name:       "v2.3",
			Scorers:    []string{"smartmoney", "insider", "momentum", "value", "quality"},
			UseQuality: true,
			FactorWeights: map[string]float64{
				"smartmoney": 0.30,
				"insider":    0.10,
				"momentum":   0.20,
				"value":      0.20,
				"quality":    0.20,
			},
			UseZScore: false,
		},
		"v3.0": {
			Name:       "v3.0",
			Scorers:    []string{"smartmoney", "insider", "momentum", "value", "quality", "risk"},
			UseQuality: true,
			FactorWeights: map[string]float64{
				"smartmoney": 0.25,
				"insider":    0.10,
				"momentum":   0.15,
				"value":      0.20,
				"quality":    0.15,
				"risk":       0.15,
			},
			UseZScore: true,
		},
	}
}

// ApplyPreset overlays a named preset onto the configuration.
func (c *Config) ApplyPreset(name string) error {
	preset, ok := Presets()[name]
	if !ok {
		return fmt.Errorf("unknown strategy preset %q", name)
	}

	c.FactorWeights = preset.FactorWeights
	c.UseZScore = preset.UseZScore

	return c.Validate()
}

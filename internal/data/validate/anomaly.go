package validate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/alphaforge/smartmoney/internal/data"
)

// AnomalyType classifies a fundamental data-quality finding.
type AnomalyType string

const (
	AnomalyNetMargin     AnomalyType = "net_margin"
	AnomalyFCFConversion AnomalyType = "fcf_conversion"
	AnomalyEquity        AnomalyType = "equity"
)

// Anomaly is one flagged record. Anomalies are never fatal; the checker's job
// is to flag, not to rewrite the investment thesis.
type Anomaly struct {
	Symbol string
	Year   int
	Type   AnomalyType
	Reason string
}

// CheckerConfig bounds the plausibility checks.
type CheckerConfig struct {
	MaxNetMargin     float64 // net income / revenue above this is suspicious
	MaxFCFConversion float64 // fcf / net income above this is suspicious
}

// DefaultCheckerConfig returns the standard bounds.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		MaxNetMargin:     1.0,
		MaxFCFConversion: 3.0,
	}
}

// Checker scans fundamentals for implausible values. In clean mode, offending
// ratios are winsorized to the bound; otherwise rows pass through unchanged
// with a warning.
type Checker struct {
	cfg   CheckerConfig
	clean bool
}

// NewChecker creates a checker. clean enables winsorization.
func NewChecker(cfg CheckerConfig, clean bool) *Checker {
	return &Checker{cfg: cfg, clean: clean}
}

// Check scans all rows and returns the cleaned set (identical to the input
// when clean mode is off) plus the anomaly list.
func (c *Checker) Check(set *data.FundamentalsSet) (*data.FundamentalsSet, []Anomaly) {
	var anomalies []Anomaly
	rows := set.Rows()
	out := make([]data.FundamentalsRow, len(rows))

	for i, row := range rows {
		cleaned := row

		if row.Revenue > 0 {
			margin := row.NetIncome / row.Revenue
			if margin > c.cfg.MaxNetMargin {
				anomalies = append(anomalies, Anomaly{
					Symbol: row.Symbol, Year: row.Year, Type: AnomalyNetMargin,
					Reason: fmt.Sprintf("net margin %.0f%% exceeds %.0f%%", margin*100, c.cfg.MaxNetMargin*100),
				})
				if c.clean {
					cleaned.NetIncome = row.Revenue * c.cfg.MaxNetMargin
				}
			}
		}

		if row.NetIncome > 0 {
			conversion := row.FCF / row.NetIncome
			if conversion > c.cfg.MaxFCFConversion {
				anomalies = append(anomalies, Anomaly{
					Symbol: row.Symbol, Year: row.Year, Type: AnomalyFCFConversion,
					Reason: fmt.Sprintf("FCF/NI %.1fx exceeds %.1fx", conversion, c.cfg.MaxFCFConversion),
				})
				if c.clean {
					cleaned.FCF = cleaned.NetIncome * c.cfg.MaxFCFConversion
				}
			}
		}

		if row.Equity < 0 {
			anomalies = append(anomalies, Anomaly{
				Symbol: row.Symbol, Year: row.Year, Type: AnomalyEquity,
				Reason: "negative shareholder equity",
			})
		}

		out[i] = cleaned
	}

	for _, a := range anomalies {
		log.Warn().Str("symbol", a.Symbol).Int("year", a.Year).
			Str("type", string(a.Type)).Str("reason", a.Reason).
			Bool("winsorized", c.clean && a.Type != AnomalyEquity).
			Msg("fundamental data anomaly")
	}

	if !c.clean {
		return set, anomalies
	}
	return data.NewFundamentalsSet(out), anomalies
}

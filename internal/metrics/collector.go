package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the pipeline's prometheus instruments. A nil *Collector is
// safe to call; every method no-ops, so library code never branches on
// telemetry being wired.
type Collector struct {
	universeSize     prometheus.Gauge
	filterExclusions *prometheus.CounterVec
	rebalances       prometheus.Counter
	skippedPeriods   prometheus.Counter
	runDuration      prometheus.Histogram
}

// NewCollector creates and registers the pipeline instruments.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		universeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartmoney_universe_size",
			Help: "Securities in the most recent snapshot after filtering",
		}),
		filterExclusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartmoney_filter_exclusions_total",
			Help: "Securities excluded, by filter stage and reason",
		}, []string{"filter", "reason"}),
		rebalances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartmoney_rebalances_total",
			Help: "Successful rebalances",
		}),
		skippedPeriods: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartmoney_skipped_periods_total",
			Help: "Rebalance dates skipped for insufficient data",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartmoney_run_duration_seconds",
			Help:    "Wall-clock duration of backtest runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(c.universeSize, c.filterExclusions, c.rebalances, c.skippedPeriods, c.runDuration)
	return c
}

// SetUniverseSize records the post-filter universe size.
func (c *Collector) SetUniverseSize(n int) {
	if c == nil {
		return
	}
	c.universeSize.Set(float64(n))
}

// AddExclusions records per-reason exclusion counts for a filter stage.
func (c *Collector) AddExclusions(filter string, reasons map[string]int) {
	if c == nil {
		return
	}
	for reason, count := range reasons {
		c.filterExclusions.WithLabelValues(filter, reason).Add(float64(count))
	}
}

// IncRebalance counts one successful rebalance.
func (c *Collector) IncRebalance() {
	if c == nil {
		return
	}
	c.rebalances.Inc()
}

// IncSkipped counts one skipped rebalance date.
func (c *Collector) IncSkipped() {
	if c == nil {
		return
	}
	c.skippedPeriods.Inc()
}

// ObserveRunDuration records a completed run's duration.
func (c *Collector) ObserveRunDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.Observe(d.Seconds())
}

// Package metrics provides Prometheus metrics for contract validation and
// registry activity. A nil *Collector is valid and records nothing, so
// instrumentation points never need nil checks at call sites.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the contract registry.
type Collector struct {
	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	IssuesTotal        *prometheus.CounterVec

	// Registry metrics
	ContractsRegistered prometheus.Gauge
	RegistrySwaps       prometheus.Counter

	// Loader metrics
	LoaderReloads      prometheus.Counter
	LoaderReloadErrors prometheus.Counter
	LoaderLastReload   prometheus.Gauge
}

// Validation directions and outcomes used as label values.
const (
	DirectionRequest  = "request"
	DirectionResponse = "response"

	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
)

// New creates a collector registered on the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered on a custom registry.
// Useful for tests and embedding.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "treaty",
				Name:      "validations_total",
				Help:      "Total number of contract validations",
			},
			[]string{"group", "contract", "direction", "outcome"},
		),
		ValidationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "treaty",
				Name:      "validation_duration_seconds",
				Help:      "Contract validation duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
			},
			[]string{"group", "contract", "direction"},
		),
		IssuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "treaty",
				Name:      "issues_total",
				Help:      "Total number of validation issues by code",
			},
			[]string{"code"},
		),
		ContractsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "treaty",
				Name:      "contracts_registered",
				Help:      "Number of contracts currently registered, versions included",
			},
		),
		RegistrySwaps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "treaty",
				Name:      "registry_swaps_total",
				Help:      "Total number of registry snapshot swaps",
			},
		),
		LoaderReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "treaty",
				Name:      "loader_reloads_total",
				Help:      "Total number of successful contract file reloads",
			},
		),
		LoaderReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "treaty",
				Name:      "loader_reload_errors_total",
				Help:      "Total number of failed contract file reloads",
			},
		),
		LoaderLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "treaty",
				Name:      "loader_last_reload_timestamp_seconds",
				Help:      "Unix timestamp of the last successful reload",
			},
		),
	}
}

// ObserveValidation records one validation with its duration.
func (c *Collector) ObserveValidation(group, contract, direction, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ValidationsTotal.WithLabelValues(group, contract, direction, outcome).Inc()
	c.ValidationDuration.WithLabelValues(group, contract, direction).Observe(d.Seconds())
}

// CountIssues bumps the per-code issue counters.
func (c *Collector) CountIssues(codes []string) {
	if c == nil {
		return
	}
	for _, code := range codes {
		c.IssuesTotal.WithLabelValues(code).Inc()
	}
}

// SetContractsRegistered records the registry size after a swap.
func (c *Collector) SetContractsRegistered(n int) {
	if c == nil {
		return
	}
	c.ContractsRegistered.Set(float64(n))
}

// IncRegistrySwap counts one snapshot swap.
func (c *Collector) IncRegistrySwap() {
	if c == nil {
		return
	}
	c.RegistrySwaps.Inc()
}

// ReloadSucceeded records a successful loader reload at time now.
func (c *Collector) ReloadSucceeded(now time.Time) {
	if c == nil {
		return
	}
	c.LoaderReloads.Inc()
	c.LoaderLastReload.Set(float64(now.Unix()))
}

// ReloadFailed records a failed loader reload.
func (c *Collector) ReloadFailed() {
	if c == nil {
		return
	}
	c.LoaderReloadErrors.Inc()
}

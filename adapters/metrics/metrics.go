// Package metrics provides Prometheus metrics collection for trustmeter.
package metrics

import (
	"math/big"

	"github.com/artpar/trustmeter/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trustmeter"

// Collector holds all Prometheus metrics for trustmeter.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Metering metrics
	UsageRequests  *prometheus.CounterVec
	UsageWei       *prometheus.CounterVec
	StoreConflicts *prometheus.CounterVec

	// Settlement metrics
	BatchesClosed     *prometheus.CounterVec
	BatchWei          *prometheus.CounterVec
	Settlements       *prometheus.CounterVec
	ChainRegistration prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered on the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Wallet authentication failures by internal reason",
			},
			[]string{"reason"},
		),
		UsageRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_requests_total",
				Help:      "Metered requests recorded per API",
			},
			[]string{"api_id"},
		),
		UsageWei: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_charged_wei_total",
				Help:      "Wei charged to open usage periods per API (approximate)",
			},
			[]string{"api_id"},
		),
		StoreConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_conflicts_total",
				Help:      "Transient storage conflicts by operation",
			},
			[]string{"op"},
		),
		BatchesClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_closed_total",
				Help:      "Usage periods closed into settlement batches",
			},
			[]string{"api_id"},
		),
		BatchWei: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_amount_wei_total",
				Help:      "Wei frozen into settlement batches (approximate)",
			},
			[]string{"api_id"},
		),
		Settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Settlement confirmations by outcome",
			},
			[]string{"outcome", "detail"},
		),
		ChainRegistration: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_registration_failures_total",
				Help:      "API registrations that could not be mirrored on chain",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// AuthFailed counts a rejected wallet authentication.
func (c *Collector) AuthFailed(reason string) {
	c.AuthFailures.WithLabelValues(reason).Inc()
}

// UsageRecorded counts a metered request and its charge.
func (c *Collector) UsageRecorded(apiID string, charged *big.Int) {
	c.UsageRequests.WithLabelValues(apiID).Inc()
	c.UsageWei.WithLabelValues(apiID).Add(weiFloat(charged))
}

// BatchClosed counts a new settlement batch.
func (c *Collector) BatchClosed(apiID string, amount *big.Int) {
	c.BatchesClosed.WithLabelValues(apiID).Inc()
	c.BatchWei.WithLabelValues(apiID).Add(weiFloat(amount))
}

// SettlementConfirmed counts a settled batch.
func (c *Collector) SettlementConfirmed(mode string) {
	c.Settlements.WithLabelValues("confirmed", mode).Inc()
}

// SettlementRejected counts a confirmation that did not settle the batch.
func (c *Collector) SettlementRejected(reason string) {
	c.Settlements.WithLabelValues("rejected", reason).Inc()
}

// StoreConflict counts transient storage contention.
func (c *Collector) StoreConflict(op string) {
	c.StoreConflicts.WithLabelValues(op).Inc()
}

// ChainRegistrationFailed counts a failed on-chain mirror.
func (c *Collector) ChainRegistrationFailed() {
	c.ChainRegistration.Inc()
}

var _ ports.Observer = (*Collector)(nil)

// weiFloat converts an amount for counters, which only hold float64.
func weiFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

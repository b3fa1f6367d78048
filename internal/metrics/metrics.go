// Package metrics provides Prometheus metrics for the engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Orchestrator metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	StateTransitions  *prometheus.CounterVec
	OperationsActive  prometheus.Gauge

	// Synchronizer metrics
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	StaleRefreshes  *prometheus.CounterVec
	EthReserve      prometheus.Gauge
	TokenReserve    prometheus.Gauge
	LPSupply        prometheus.Gauge

	// Chain metrics
	LatestBlock prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "simpledex"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of finished operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Operation duration from validation to settlement",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state_transitions_total",
			Help:      "Total number of state machine transitions by target state",
		}, []string{"state"}),
		OperationsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_active",
			Help:      "Operations currently in flight",
		}),

		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "refresh_total",
			Help:      "Total number of snapshot refreshes by snapshot and status",
		}, []string{"snapshot", "status"}),
		RefreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "refresh_duration_seconds",
			Help:      "Snapshot refresh latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"snapshot"}),
		StaleRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "stale_refresh_total",
			Help:      "Refreshes dropped because a newer one was already published",
		}, []string{"snapshot"}),
		EthReserve: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "eth_reserve",
			Help:      "ETH held by the pool",
		}),
		TokenReserve: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "token_reserve",
			Help:      "Tokens held by the pool",
		}),
		LPSupply: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "lp_supply",
			Help:      "LP tokens in circulation",
		}),

		LatestBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "latest_block",
			Help:      "Highest block number seen by the watcher",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordOperation records a finished operation.
func (m *Metrics) RecordOperation(kind string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.OperationsTotal.WithLabelValues(kind, outcome).Inc()
	m.OperationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordTransition counts a state machine transition.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(state).Inc()
}

// OperationStarted and OperationFinished track in-flight operations.
func (m *Metrics) OperationStarted() {
	if m == nil {
		return
	}
	m.OperationsActive.Inc()
}

func (m *Metrics) OperationFinished() {
	if m == nil {
		return
	}
	m.OperationsActive.Dec()
}

// RecordRefresh records a snapshot refresh attempt.
func (m *Metrics) RecordRefresh(snapshot string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RefreshTotal.WithLabelValues(snapshot, status).Inc()
	m.RefreshDuration.WithLabelValues(snapshot).Observe(d.Seconds())
}

// RecordStale counts a refresh discarded in favour of a newer one.
func (m *Metrics) RecordStale(snapshot string) {
	if m == nil {
		return
	}
	m.StaleRefreshes.WithLabelValues(snapshot).Inc()
}

// SetReserves updates the pool gauges.
func (m *Metrics) SetReserves(eth, token, lp float64) {
	if m == nil {
		return
	}
	m.EthReserve.Set(eth)
	m.TokenReserve.Set(token)
	m.LPSupply.Set(lp)
}

// SetLatestBlock updates the latest block gauge.
func (m *Metrics) SetLatestBlock(block uint64) {
	if m == nil {
		return
	}
	m.LatestBlock.Set(float64(block))
}

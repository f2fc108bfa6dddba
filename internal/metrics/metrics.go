// Package metrics exposes the trader's Prometheus instrumentation.
//
// Served at /metrics in the Prometheus text exposition format:
//   - bot_decisions_total{disposition,reason} - decisions per cycle outcome
//   - bot_orders_total{state}                 - orders per terminal state
//   - bot_spend_rejections_total              - spend-cap rejections
//   - bot_open_trades                         - open positions (gauge)
//   - bot_pnl_usd                             - realized P&L snapshot (gauge)
//   - bot_cycle_duration_seconds              - full-cycle latency histogram
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every registered collector.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	Orders          *prometheus.CounterVec
	SpendRejections prometheus.Counter
	OpenTrades      prometheus.Gauge
	PnL             prometheus.Gauge
	CycleDuration   prometheus.Histogram

	registry *prometheus.Registry
}

// New registers the trader's collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_decisions_total",
				Help: "Decisions by disposition and rejection reason",
			},
			[]string{"disposition", "reason"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_orders_total",
				Help: "Orders by terminal state",
			},
			[]string{"state"},
		),
		SpendRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bot_spend_rejections_total",
				Help: "Candidates rejected by the sliding spend cap",
			},
		),
		OpenTrades: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_open_trades",
				Help: "Open positions awaiting resolution",
			},
		),
		PnL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bot_pnl_usd",
				Help: "Realized P&L in USD",
			},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bot_cycle_duration_seconds",
				Help:    "Full trading cycle latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Decisions, m.Orders, m.SpendRejections,
		m.OpenTrades, m.PnL, m.CycleDuration,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

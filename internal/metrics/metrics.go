// Package metrics defines the Prometheus instruments exported by the bot.
// The Set carries its own registry so the observability server can expose it
// and tests can create isolated instances.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set groups every instrument the bot records.
type Set struct {
	Registry *prometheus.Registry

	TicksApplied    *prometheus.CounterVec // ticks upserted into the price book
	OrdersPlaced    *prometheus.CounterVec // accepted placements
	OrdersRejected  *prometheus.CounterVec // placements without an order id, or errored
	CancelsIssued   *prometheus.CounterVec // deviation cancels submitted
	CancelsFailed   *prometheus.CounterVec // cancel calls that errored
	ReconcileEvents *prometheus.CounterVec // status events applied, by status
	LastMid         *prometheus.GaugeVec   // latest mid per instrument
	LiveOrders      prometheus.Gauge       // live venue orders across instruments
}

// New creates and registers the full instrument set on a fresh registry.
func New() *Set {
	s := &Set{
		Registry: prometheus.NewRegistry(),
		TicksApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_ticks_applied_total",
				Help: "Oracle ticks applied to the price book.",
			},
			[]string{"instrument"},
		),
		OrdersPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_orders_placed_total",
				Help: "Orders accepted by the venue.",
			},
			[]string{"instrument", "side"},
		),
		OrdersRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_orders_rejected_total",
				Help: "Placements that errored or returned no order id.",
			},
			[]string{"instrument", "side"},
		),
		CancelsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_cancels_issued_total",
				Help: "Deviation cancels submitted to the venue.",
			},
			[]string{"instrument", "side"},
		),
		CancelsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_cancels_failed_total",
				Help: "Cancel calls that returned an error.",
			},
			[]string{"instrument", "side"},
		),
		ReconcileEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mm_reconcile_events_total",
				Help: "Order status events applied to instrument state.",
			},
			[]string{"status"},
		),
		LastMid: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mm_last_mid",
				Help: "Latest oracle mid price per instrument.",
			},
			[]string{"instrument"},
		),
		LiveOrders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mm_live_orders",
				Help: "Live venue orders currently tracked across all instruments.",
			},
		),
	}

	s.Registry.MustRegister(
		s.TicksApplied,
		s.OrdersPlaced,
		s.OrdersRejected,
		s.CancelsIssued,
		s.CancelsFailed,
		s.ReconcileEvents,
		s.LastMid,
		s.LiveOrders,
	)
	return s
}

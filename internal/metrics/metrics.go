// Package metrics holds the relay's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roomrelay",
		Name:      "sessions_active",
		Help:      "Authenticated websocket sessions currently open.",
	})

	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "auth_failures_total",
		Help:      "Connections rejected by the authenticator.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "broadcasts_total",
		Help:      "Room broadcasts dispatched, by event.",
	}, []string{"event"})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "delivery_failures_total",
		Help:      "Frames that could not be handed to a recipient.",
	})

	Signals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "signals_total",
		Help:      "Signal relay attempts, by outcome.",
	}, []string{"outcome"})

	DurableWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roomrelay",
		Name:      "durable_write_failures_total",
		Help:      "Failed durable membership writes.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

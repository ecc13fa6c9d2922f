package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the subsystem's Prometheus collectors.
type Metrics struct {
	OrdersCreated   prometheus.Counter
	PaymentSessions *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		PaymentSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "payment",
			Name:      "sessions_total",
			Help:      "Payment sessions opened, by provider and result.",
		}, []string{"provider", "result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "reconcile",
			Name:      "webhook_events_total",
			Help:      "Inbound provider webhooks, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	reg.MustRegister(m.OrdersCreated, m.PaymentSessions, m.WebhookEvents, m.RequestLatency)
	return m
}

// Handler serves the metrics endpoint for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus collectors for the HTTP API and order pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors. Each instance owns its registry so tests can build fresh ones.
type Metrics struct {
	Registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	ordersCreated prometheus.Counter
	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders durably persisted.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Order notification outcomes.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_notification_deliveries_total",
			Help: "Results of queued notification sends.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		m.requests,
		m.duration,
		m.ordersCreated,
		m.notifications,
		m.deliveries,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordHTTPRequest and the order recorders are no-ops on a nil *Metrics.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// Notification counts the notification status of each persisted order:
// sent, failed, skipped or queued. Exactly one per order.
func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

// Delivery counts the later result of a queued send: sent or failed.
func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

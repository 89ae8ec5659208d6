// Package metrics owns the Prometheus registry shared by every mode.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restaurant"

var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Requests currently holding a concurrency slot.",
	})

	OrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders placed by order type.",
	}, []string{"order_type"})

	PointsRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loyalty_points_redeemed_total",
		Help:      "Loyalty points spent on orders.",
	})

	PointsEarned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loyalty_points_earned_total",
		Help:      "Loyalty points credited by orders.",
	})

	StatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_changes_total",
		Help:      "Order status changes by target status.",
	}, []string{"status"})

	KitchenOrders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kitchen_orders_total",
		Help:      "Kitchen deliveries by outcome (ack, requeue, dead_letter).",
	}, []string{"result"})

	TrackingClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracking_ws_clients",
		Help:      "Connected tracking websocket clients.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests, HTTPDuration, HTTPInFlight,
		OrdersPlaced, PointsRedeemed, PointsEarned, StatusChanges,
		KitchenOrders, TrackingClients,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

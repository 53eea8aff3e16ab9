package handlers

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Define Prometheus metrics
var (
	// Counter for account registrations
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"status"}, // success, error
	)

	loginRequestsbyStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_requests_by_status_total",
		Help: "Total number of login requests by status",
	},
		[]string{"status"})

	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of order creation attempts",
		},
		[]string{"status"},
	)

	// Histogram for checkout request duration
	orderCreateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_create_duration_seconds",
			Help:    "Histogram of request durations for creating orders",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Accepted order status transitions by target status",
	},
		[]string{"status"})

	paymentOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_total",
		Help: "Payment intents, confirmations and webhook events by outcome",
	},
		[]string{"source", "outcome"})

	initOnce sync.Once
)

// Init registers the handler metrics with Prometheus.
func Init(reg prometheus.Registerer) {
	initOnce.Do(func() {
		reg.MustRegister(registrations)
		reg.MustRegister(loginRequestsbyStatus)
		reg.MustRegister(ordersCreated)
		reg.MustRegister(orderCreateDuration)
		reg.MustRegister(statusTransitions)
		reg.MustRegister(paymentOutcomes)
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

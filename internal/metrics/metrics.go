package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	paymentsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "payments_confirmed_total",
			Help:      "Confirmed payments by kind.",
		},
		[]string{"kind"},
	)

	calendarCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelier",
			Name:      "calendar_cache_requests_total",
			Help:      "Availability calendar cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingTransitions, paymentsConfirmed, calendarCacheHits)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition counts a booking entering the given status.
func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncPaymentConfirmed counts a settled payment of the given kind.
func IncPaymentConfirmed(kind string) {
	paymentsConfirmed.WithLabelValues(kind).Inc()
}

// IncCalendarCache counts a cache lookup: "hit", "miss" or "error".
func IncCalendarCache(outcome string) {
	calendarCacheHits.WithLabelValues(outcome).Inc()
}

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SourceLive     = "live"
	SourcePartial  = "partial"
	SourceFallback = "fallback"
)

var (
	slotFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaslot_slot_fetch_total",
		Help: "Slot fetches by data source (live, partial = live with synthesized gaps, fallback = fully synthetic)",
	}, []string{"source"})

	pollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visaslot_poll_cycles_total",
		Help: "Completed slot poll cycles",
	})

	bookingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visaslot_booking_outcomes_total",
		Help: "Terminal booking outcomes (confirmed, payment_failed, payment_cancelled, payment_timed_out, partial_failure)",
	}, []string{"outcome"})

	bookingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visaslot_booking_duration_seconds",
		Help:    "Wall time of a booking run from trigger to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visaslot_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func RecordSlotFetch(source string) {
	slotFetches.WithLabelValues(source).Inc()
}

func RecordPollCycle() {
	pollCycles.Inc()
}

func RecordBookingOutcome(outcome string, seconds float64) {
	bookingOutcomes.WithLabelValues(outcome).Inc()
	bookingDuration.WithLabelValues(outcome).Observe(seconds)
}

func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

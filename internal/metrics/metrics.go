package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by purpose.",
		},
		[]string{"purpose"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "booking_rejected_total",
			Help:      "Count of rejected booking operations by reason.",
		},
		[]string{"reason"},
	)

	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "booking_transition_total",
			Help:      "Count of booking state transitions.",
		},
		[]string{"transition"},
	)

	noShowPenalty = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "no_show_penalty_total",
			Help:      "Count of quota penalty hours applied for no-shows.",
		},
	)

	lockFailover = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "lock_backend_switch_total",
			Help:      "Count of lock backend switches by direction.",
		},
		[]string{"direction"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "practicerooms",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingRejected, bookingTransition, noShowPenalty, lockFailover, httpRequests)
	})
}

func IncBookingCreated(purpose string) {
	bookingCreated.WithLabelValues(purpose).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

// IncTransition counts cancel, check_in, approve, no_show and similar transitions.
func IncTransition(transition string) {
	bookingTransition.WithLabelValues(transition).Inc()
}

func IncNoShowPenalty() {
	noShowPenalty.Inc()
}

func IncLockFailover(direction string) {
	lockFailover.WithLabelValues(direction).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}

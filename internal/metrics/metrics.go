package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters and histograms for the booking flow. A nil
// *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	bookingLatency     prometheus.Histogram
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	slotsCreatedTotal  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "booking_latency_seconds",
			Help:      "Latency of the claim and create unit of work",
			Buckets:   prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Appointment status changes by target status and result",
		}, []string{"to", "result"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "notifications_total",
			Help:      "Booking notifications by outcome",
		}, []string{"status"}),
		slotsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slots_created_total",
			Help:      "Availability slots created",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.transitionsTotal, m.notificationsTotal, m.slotsCreatedTotal)
	return m
}

// ObserveBooking records one booking attempt. result is "ok" or an error kind.
func (m *BookingMetrics) ObserveBooking(result string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, result).Inc()
}

func (m *BookingMetrics) ObserveNotification(ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notificationsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) AddSlotsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsCreatedTotal.Add(float64(n))
}

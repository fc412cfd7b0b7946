package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransactionMetrics tracks the pre-booking pipeline: reservations,
// payment verification, and settlement.
type TransactionMetrics struct {
	bookingsCreated  *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	outcomesResolved *prometheus.CounterVec
}

// NewTransactionMetrics registers the transaction metrics on the provided registerer.
func NewTransactionMetrics(reg prometheus.Registerer) *TransactionMetrics {
	if reg == nil {
		return &TransactionMetrics{}
	}
	bookingsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Booking reservations created, labeled by model code.",
	}, []string{"model"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Server-side payment verifications, labeled by result.",
	}, []string{"result"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Post-payment settlements, labeled by outcome.",
	}, []string{"outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomesResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout session outcomes resolved from gateway callbacks.",
	}, []string{"status"})
	reg.MustRegister(bookingsCreated, verifications, settlements, gatewayDuration, outcomesResolved)
	return &TransactionMetrics{
		bookingsCreated:  bookingsCreated,
		verifications:    verifications,
		settlements:      settlements,
		gatewayDuration:  gatewayDuration,
		outcomesResolved: outcomesResolved,
	}
}

// IncBookingCreated counts a new reservation for the given model code.
func (t *TransactionMetrics) IncBookingCreated(model string) {
	if t == nil || t.bookingsCreated == nil {
		return
	}
	t.bookingsCreated.WithLabelValues(normalizeLabel(model)).Inc()
}

// IncVerification counts a verification by result ("captured", "failed").
func (t *TransactionMetrics) IncVerification(result string) {
	if t == nil || t.verifications == nil {
		return
	}
	t.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncSettlement counts a settlement by outcome ("settled", "duplicate", "rejected").
func (t *TransactionMetrics) IncSettlement(outcome string) {
	if t == nil || t.settlements == nil {
		return
	}
	t.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayDuration records latency for a gateway operation.
func (t *TransactionMetrics) ObserveGatewayDuration(operation string, duration time.Duration) {
	if t == nil || t.gatewayDuration == nil {
		return
	}
	t.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncOutcomeResolved counts a resolved checkout session status.
func (t *TransactionMetrics) IncOutcomeResolved(status string) {
	if t == nil || t.outcomesResolved == nil {
		return
	}
	t.outcomesResolved.WithLabelValues(normalizeLabel(status)).Inc()
}

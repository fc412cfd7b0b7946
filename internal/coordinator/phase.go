package coordinator

import (
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
)

// Phase is the coordinator's view of where a transaction stands. It is
// derived from durable state, never stored: the reservation and its open
// session are the source of truth.
type Phase string

const (
	PhaseAwaitingCheckout Phase = "awaiting_checkout"
	PhaseCheckoutOpen     Phase = "checkout_open"
	PhaseSettled          Phase = "settled"
	PhaseClosed           Phase = "closed"
)

func (p Phase) String() string {
	return string(p)
}

// PhaseFor derives the transaction phase from a reservation and its open
// payment session, if any.
func PhaseFor(reservation *models.Reservation, open *models.PaymentSession) Phase {
	switch reservation.Status {
	case enums.ReservationStatusPaid:
		return PhaseSettled
	case enums.ReservationStatusCancelled, enums.ReservationStatusExpired:
		return PhaseClosed
	}
	if open != nil {
		return PhaseCheckoutOpen
	}
	return PhaseAwaitingCheckout
}

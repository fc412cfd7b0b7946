package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a pre-booking reservation.
type ReservationStatus string

const (
	ReservationStatusDraft          ReservationStatus = "draft"
	ReservationStatusPendingPayment ReservationStatus = "pending_payment"
	ReservationStatusPaid           ReservationStatus = "paid"
	ReservationStatusCancelled      ReservationStatus = "cancelled"
	ReservationStatusExpired        ReservationStatus = "expired"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusDraft,
	ReservationStatusPendingPayment,
	ReservationStatusPaid,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the status may move to next. Transitions
// run forward only, except that a pending reservation may be cancelled by
// the customer or expired by the reservation store.
func (r ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	switch r {
	case ReservationStatusDraft:
		return next == ReservationStatusPendingPayment
	case ReservationStatusPendingPayment:
		return next == ReservationStatusPaid ||
			next == ReservationStatusCancelled ||
			next == ReservationStatusExpired
	default:
		return false
	}
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}

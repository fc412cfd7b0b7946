package enums

import "fmt"

// PaymentSessionStatus tracks one hosted-checkout attempt at the gateway.
type PaymentSessionStatus string

const (
	PaymentSessionStatusOpened        PaymentSessionStatus = "opened"
	PaymentSessionStatusCompleted     PaymentSessionStatus = "completed"
	PaymentSessionStatusUserCancelled PaymentSessionStatus = "user_cancelled"
	PaymentSessionStatusDismissed     PaymentSessionStatus = "dismissed"
)

var validPaymentSessionStatuses = []PaymentSessionStatus{
	PaymentSessionStatusOpened,
	PaymentSessionStatusCompleted,
	PaymentSessionStatusUserCancelled,
	PaymentSessionStatusDismissed,
}

// String implements fmt.Stringer.
func (p PaymentSessionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentSessionStatus.
func (p PaymentSessionStatus) IsValid() bool {
	for _, candidate := range validPaymentSessionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session has reached a final outcome.
func (p PaymentSessionStatus) IsTerminal() bool {
	return p == PaymentSessionStatusCompleted ||
		p == PaymentSessionStatusUserCancelled ||
		p == PaymentSessionStatusDismissed
}

// ParsePaymentSessionStatus converts raw input into a PaymentSessionStatus.
func ParsePaymentSessionStatus(value string) (PaymentSessionStatus, error) {
	for _, candidate := range validPaymentSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment session status %q", value)
}

package enums

import "fmt"

// LedgerEntryStatus tracks the payout lifecycle of a referral bonus entry.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending LedgerEntryStatus = "pending"
	LedgerEntryStatusPosted  LedgerEntryStatus = "posted"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusPosted,
}

// String implements fmt.Stringer.
func (l LedgerEntryStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (l LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerEntryStatus converts raw input into a LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}

package outbox

import (
	"time"

	"github.com/google/uuid"
)

// BookingCreatedEvent signals a new pre-booking reservation.
type BookingCreatedEvent struct {
	ReservationID  uuid.UUID `json:"reservation_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	ModelCode      string    `json:"model_code"`
	BookingAmount  int64     `json:"booking_amount"`
	TotalAmount    int64     `json:"total_amount"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// BookingPaidEvent is emitted once a reservation settles.
type BookingPaidEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	GatewayRef    string    `json:"gateway_ref"`
	PaidAt        time.Time `json:"paid_at"`
}

// BookingCancelledEvent reports a buyer-initiated cancellation.
type BookingCancelledEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
	Reason        string    `json:"reason,omitempty"`
}

// BookingExpiredEvent reports a reservation reaped past its TTL.
type BookingExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// TermsAcceptedEvent records a verified terms acceptance.
type TermsAcceptedEvent struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	DocumentID  string    `json:"document_id"`
	Version     string    `json:"version"`
	ReceiptRef  string    `json:"receipt_ref"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// BonusRecordedEvent surfaces the referral payout after settlement.
type BonusRecordedEvent struct {
	LedgerEntryID uuid.UUID  `json:"ledger_entry_id"`
	ReservationID uuid.UUID  `json:"reservation_id"`
	DistributorID *uuid.UUID `json:"distributor_id,omitempty"`
	ReferralCode  string     `json:"referral_code"`
	GrossBonus    int64     `json:"gross_bonus"`
	TDSAmount     int64     `json:"tds_amount"`
	NetAmount     int64     `json:"net_amount"`
}

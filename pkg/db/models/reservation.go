package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/pkg/enums"
)

// Reservation is a customer's claim on one priced inventory configuration,
// pending payment. Amounts are whole rupees.
type Reservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	ModelCode       string                  `gorm:"column:model_code;not null"`
	Color           string                  `gorm:"column:color;not null"`
	BatteryVariant  string                  `gorm:"column:battery_variant;not null"`
	BookingAmount   int64                   `gorm:"column:booking_amount;not null"`
	TotalAmount     int64                   `gorm:"column:total_amount;not null"`
	Status          enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'pending_payment'"`
	IdempotencyKey  string                  `gorm:"column:idempotency_key;not null;uniqueIndex:ux_reservations_idempotency_key"`
	ReferredBy      *string                 `gorm:"column:referred_by"`
	TermsReceiptRef *string                 `gorm:"column:terms_receipt_ref"`
	ExpiresAt       time.Time               `gorm:"column:expires_at;not null"`
	PaidAt          *time.Time              `gorm:"column:paid_at"`
	CancelledAt     *time.Time              `gorm:"column:cancelled_at"`
	ExpiredAt       *time.Time              `gorm:"column:expired_at"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

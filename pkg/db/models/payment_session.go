package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/pkg/enums"
)

// PaymentSession records one hosted-checkout attempt at the payment gateway.
// At most one session per reservation may be opened at a time.
type PaymentSession struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayRef    string                     `gorm:"column:gateway_ref;not null;uniqueIndex:ux_payment_sessions_gateway_ref"`
	ReservationID uuid.UUID                  `gorm:"column:reservation_id;type:uuid;not null;index"`
	Amount        int64                      `gorm:"column:amount;not null"`
	Status        enums.PaymentSessionStatus `gorm:"column:status;type:text;not null;default:'opened'"`
	OpenedAt      time.Time                  `gorm:"column:opened_at;not null"`
	ResolvedAt    *time.Time                 `gorm:"column:resolved_at"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

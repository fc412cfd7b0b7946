package models

import (
	"time"

	"github.com/voltara/prebooking-backend/pkg/enums"
)

// VerificationRecord is the durable fact that a gateway reference was checked
// against the payment backend. Keyed by gateway ref: a second verification for
// the same ref returns this row instead of re-querying the gateway.
type VerificationRecord struct {
	GatewayRef string                   `gorm:"column:gateway_ref;primaryKey"`
	Result     enums.VerificationResult `gorm:"column:result;type:text;not null"`
	VerifiedAt time.Time                `gorm:"column:verified_at;not null"`
	CreatedAt  time.Time                `gorm:"column:created_at;autoCreateTime"`
}

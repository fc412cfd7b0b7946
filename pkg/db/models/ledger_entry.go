package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/pkg/enums"
)

// LedgerEntry records the referral bonus payout computed at settlement.
// At most one entry exists per reservation.
type LedgerEntry struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReservationID uuid.UUID               `gorm:"column:reservation_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_reservation_id"`
	ReferralCode  string                  `gorm:"column:referral_code;not null"`
	DistributorID *uuid.UUID              `gorm:"column:distributor_id;type:uuid"`
	GrossBonus    int64                   `gorm:"column:gross_bonus;not null"`
	TDSAmount     int64                   `gorm:"column:tds_amount;not null"`
	NetAmount     int64                   `gorm:"column:net_amount;not null"`
	Status        enums.LedgerEntryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PostedAt      *time.Time              `gorm:"column:posted_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

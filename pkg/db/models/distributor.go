package models

import (
	"time"

	"github.com/google/uuid"
)

// Distributor is a referral-network member whose code earns booking bonuses.
// Only verified distributors receive network insertions.
type Distributor struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName     string    `gorm:"column:full_name;not null"`
	ReferralCode string    `gorm:"column:referral_code;not null;uniqueIndex:ux_distributors_referral_code"`
	Verified     bool      `gorm:"column:verified;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

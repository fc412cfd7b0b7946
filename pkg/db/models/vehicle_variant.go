package models

import (
	"time"

	"github.com/google/uuid"
)

// VehicleVariant is one sellable configuration (model, color, battery pack)
// with its authoritative catalog price. Amounts are whole rupees.
type VehicleVariant struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ModelCode      string    `gorm:"column:model_code;not null;uniqueIndex:ux_vehicle_variants_config"`
	Color          string    `gorm:"column:color;not null;uniqueIndex:ux_vehicle_variants_config"`
	BatteryVariant string    `gorm:"column:battery_variant;not null;uniqueIndex:ux_vehicle_variants_config"`
	Price          int64     `gorm:"column:price;not null"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/db/models"
)

// Repository manages persistence for vehicle variants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVariant(ctx context.Context, modelCode, color, batteryVariant string) (*models.VehicleVariant, error)
	ListActive(ctx context.Context) ([]models.VehicleVariant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariant(ctx context.Context, modelCode, color, batteryVariant string) (*models.VehicleVariant, error) {
	var variant models.VehicleVariant
	err := r.db.WithContext(ctx).
		Where("model_code = ? AND color = ? AND battery_variant = ?", modelCode, color, batteryVariant).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.VehicleVariant, error) {
	var variants []models.VehicleVariant
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("model_code ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/internal/repo"
	"github.com/voltara/prebooking-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByReservation(ctx context.Context, reservationID uuid.UUID) (*models.LedgerEntry, error)
	Update(ctx context.Context, entry *models.LedgerEntry) error
	FindVerifiedDistributor(ctx context.Context, referralCode string) (*models.Distributor, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) FindByReservation(ctx context.Context, reservationID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.DB(ctx).
		Where("reservation_id = ?", reservationID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) Update(ctx context.Context, entry *models.LedgerEntry) error {
	return r.DB(ctx).Save(entry).Error
}

func (r *repository) FindVerifiedDistributor(ctx context.Context, referralCode string) (*models.Distributor, error) {
	var distributor models.Distributor
	err := r.DB(ctx).
		Where("referral_code = ? AND verified = ?", referralCode, true).
		First(&distributor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distributor, nil
}

package verification

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voltara/prebooking-backend/internal/repo"
	"github.com/voltara/prebooking-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error)
	Upsert(ctx context.Context, record *models.VerificationRecord) error
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

func (r *repository) Find(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := r.DB(ctx).
		Where("gateway_ref = ?", gatewayRef).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) Upsert(ctx context.Context, record *models.VerificationRecord) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"result", "verified_at"}),
		}).
		Create(record).Error
}

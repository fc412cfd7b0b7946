package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/internal/repo"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.PaymentSession) error
	FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.PaymentSession, error)
	FindOpenByReservation(ctx context.Context, reservationID uuid.UUID) (*models.PaymentSession, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.PaymentSession, error)
	Update(ctx context.Context, session *models.PaymentSession) error
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

func (r *repository) Create(ctx context.Context, session *models.PaymentSession) error {
	return r.DB(ctx).Create(session).Error
}

func (r *repository) FindByGatewayRef(ctx context.Context, gatewayRef string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := r.DB(ctx).
		Where("gateway_ref = ?", gatewayRef).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenByReservation(ctx context.Context, reservationID uuid.UUID) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := r.DB(ctx).
		Where("reservation_id = ? AND status = ?", reservationID, enums.PaymentSessionStatusOpened).
		Order("opened_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.PaymentSession, error) {
	var sessions []models.PaymentSession
	err := r.DB(ctx).
		Where("reservation_id = ?", reservationID).
		Order("opened_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) Update(ctx context.Context, session *models.PaymentSession) error {
	return r.DB(ctx).Save(session).Error
}

package terms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/db/models"
)

// Repository manages persistence for acceptance challenges and the documents
// they attest to.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveDocument(ctx context.Context, documentID string) (*models.TermsDocument, error)
	FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	CreateChallenge(ctx context.Context, challenge *models.AcceptanceChallenge) error
	FindChallenge(ctx context.Context, challengeID uuid.UUID) (*models.AcceptanceChallenge, error)
	FindVerifiedReceipt(ctx context.Context, customerID uuid.UUID, receiptRef string) (*models.AcceptanceChallenge, error)
	SupersedeUnverified(ctx context.Context, customerID uuid.UUID, documentID string) error
	UpdateChallenge(ctx context.Context, challenge *models.AcceptanceChallenge) error
	ConsumeAttempt(ctx context.Context, challengeID uuid.UUID) (remaining int, claimed bool, err error)
	LockChallenge(ctx context.Context, challengeID uuid.UUID) error
	DeleteExpiredUnverified(ctx context.Context, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a terms repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveDocument(ctx context.Context, documentID string) (*models.TermsDocument, error) {
	var doc models.TermsDocument
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND active = ?", documentID, true).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *repository) FindCustomer(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).First(&customer, "id = ?", customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repository) CreateChallenge(ctx context.Context, challenge *models.AcceptanceChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *repository) FindChallenge(ctx context.Context, challengeID uuid.UUID) (*models.AcceptanceChallenge, error) {
	var challenge models.AcceptanceChallenge
	err := r.db.WithContext(ctx).First(&challenge, "id = ?", challengeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) FindVerifiedReceipt(ctx context.Context, customerID uuid.UUID, receiptRef string) (*models.AcceptanceChallenge, error) {
	var challenge models.AcceptanceChallenge
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND receipt_ref = ? AND verified = ?", customerID, receiptRef, true).
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) SupersedeUnverified(ctx context.Context, customerID uuid.UUID, documentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.AcceptanceChallenge{}).
		Where("customer_id = ? AND document_id = ? AND verified = ? AND locked = ?", customerID, documentID, false, false).
		Update("locked", true).Error
}

func (r *repository) UpdateChallenge(ctx context.Context, challenge *models.AcceptanceChallenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}

// ConsumeAttempt spends one verification attempt. The attempts_remaining > 0
// guard makes the decrement safe under concurrent wrong-code submissions: the
// counter can never go below zero no matter how many requests race. claimed is
// false when no attempt was left to spend.
func (r *repository) ConsumeAttempt(ctx context.Context, challengeID uuid.UUID) (int, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AcceptanceChallenge{}).
		Where("id = ? AND attempts_remaining > 0", challengeID).
		UpdateColumn("attempts_remaining", gorm.Expr("attempts_remaining - 1"))
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}

	var challenge models.AcceptanceChallenge
	if err := r.db.WithContext(ctx).
		Select("attempts_remaining").
		First(&challenge, "id = ?", challengeID).Error; err != nil {
		return 0, false, err
	}
	return challenge.AttemptsRemaining, true, nil
}

func (r *repository) LockChallenge(ctx context.Context, challengeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AcceptanceChallenge{}).
		Where("id = ?", challengeID).
		Update("locked", true).Error
}

func (r *repository) DeleteExpiredUnverified(ctx context.Context, limit int) (int64, error) {
	subquery := r.db.WithContext(ctx).
		Model(&models.AcceptanceChallenge{}).
		Select("id").
		Where("verified = ? AND expires_at < CURRENT_TIMESTAMP", false).
		Limit(limit)
	result := r.db.WithContext(ctx).
		Where("id IN (?)", subquery).
		Delete(&models.AcceptanceChallenge{})
	return result.RowsAffected, result.Error
}

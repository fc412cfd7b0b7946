package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/config"
	dbpkg "github.com/voltara/prebooking-backend/pkg/db"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

// Service creates and manages pre-booking reservations. Creation is
// idempotent: submitting the same idempotency key always yields the same
// reservation.
type Service interface {
	Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Reservation, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// CreateReservationInput carries everything needed to reserve a configuration.
type CreateReservationInput struct {
	CustomerID      uuid.UUID
	ModelCode       string
	Color           string
	BatteryVariant  string
	BookingAmount   int64
	TotalAmount     int64
	IdempotencyKey  string
	ReferredBy      *string
	TermsReceiptRef string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type priceLoader interface {
	GetPrice(ctx context.Context, modelCode, color, batteryVariant string) (int64, error)
}

type receiptChecker interface {
	ReceiptValid(ctx context.Context, customerID uuid.UUID, receiptRef string) (bool, error)
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

// idempotencyClaimTTL bounds how long a crashed submit can hold the key.
const idempotencyClaimTTL = time.Minute

type service struct {
	repo      Repository
	db        txRunner
	catalog   priceLoader
	terms     receiptChecker
	guard     idempotencyStore
	outboxSvc *outbox.Service
	cfg       config.BookingConfig
	logg      *logger.Logger
}

// NewService wires the reservation service.
func NewService(
	repo Repository,
	db txRunner,
	catalog priceLoader,
	terms receiptChecker,
	guard idempotencyStore,
	outboxSvc *outbox.Service,
	cfg config.BookingConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("booking tx runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("booking price loader required")
	}
	if terms == nil {
		return nil, fmt.Errorf("booking receipt checker required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("booking outbox service required")
	}
	return &service{
		repo:      repo,
		db:        db,
		catalog:   catalog,
		terms:     terms,
		guard:     guard,
		outboxSvc: outboxSvc,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	if err := s.validateCreate(ctx, &input); err != nil {
		return nil, err
	}

	// Fast path: the key was already used.
	existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if s.guard == nil {
		return s.createReservation(ctx, input)
	}

	// Claim the key for the duration of the insert. A losing submit waits
	// for the winner's row instead of racing to the unique constraint.
	key := s.guard.IdempotencyKey("bookings", input.IdempotencyKey)
	claimed, err := s.guard.SetNX(ctx, key, "1", idempotencyClaimTTL)
	if err != nil {
		// Cache unavailable; the unique constraint is still the arbiter.
		if s.logg != nil {
			s.logg.Warn(ctx, "idempotency cache unavailable")
		}
		return s.createReservation(ctx, input)
	}
	if !claimed {
		return s.awaitWinner(ctx, input.IdempotencyKey)
	}

	reservation, err := s.createReservation(ctx, input)
	if err != nil {
		// Release the claim so a corrected retry with the same key can run.
		_ = s.guard.Del(ctx, key)
		return nil, err
	}
	return reservation, nil
}

func (s *service) createReservation(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	price, err := s.catalog.GetPrice(ctx, input.ModelCode, input.Color, input.BatteryVariant)
	if err != nil {
		return nil, err
	}
	if input.TotalAmount != price {
		return nil, errors.New(errors.CodePriceMismatch, "total amount does not match catalog price").
			WithDetails(map[string]any{"expected": price, "got": input.TotalAmount})
	}

	now := time.Now().UTC()
	reservation := &models.Reservation{
		ID:              uuid.New(),
		CustomerID:      input.CustomerID,
		ModelCode:       input.ModelCode,
		Color:           input.Color,
		BatteryVariant:  input.BatteryVariant,
		BookingAmount:   input.BookingAmount,
		TotalAmount:     input.TotalAmount,
		Status:          enums.ReservationStatusPendingPayment,
		IdempotencyKey:  input.IdempotencyKey,
		ReferredBy:      input.ReferredBy,
		TermsReceiptRef: &input.TermsReceiptRef,
		ExpiresAt:       now.Add(s.cfg.ReservationTTL),
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, reservation); err != nil {
			return err
		}
		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: outbox.BookingCreatedEvent{
				ReservationID:  reservation.ID,
				CustomerID:     reservation.CustomerID,
				ModelCode:      reservation.ModelCode,
				BookingAmount:  reservation.BookingAmount,
				TotalAmount:    reservation.TotalAmount,
				IdempotencyKey: reservation.IdempotencyKey,
			},
			Version: 1,
		})
	})
	if err != nil {
		// A concurrent request with the same key may have won the insert race.
		if dbpkg.IsUniqueViolation(err, "ux_reservations_idempotency_key") ||
			dbpkg.IsUniqueViolation(err, "reservations.idempotency_key") {
			winner, findErr := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
		s.logg.Info(logCtx, "reservation created")
	}
	return reservation, nil
}

// awaitWinner polls for the reservation being created by the submit that
// holds the idempotency claim.
func (s *service) awaitWinner(ctx context.Context, idempotencyKey string) (*models.Reservation, error) {
	var winner *models.Reservation
	backoff := retry.WithMaxRetries(5, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		found, err := s.repo.FindByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return err
		}
		if found == nil {
			return retry.RetryableError(errors.New(errors.CodeIdempotency, "reservation not visible yet"))
		}
		winner = found
		return nil
	})
	if err != nil {
		if winner == nil {
			return nil, errors.New(errors.CodeIdempotency, "another request with this idempotency key is in flight")
		}
		return nil, err
	}
	return winner, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, errors.New(errors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cancelling an already cancelled reservation is a no-op.
	if reservation.Status == enums.ReservationStatusCancelled {
		return reservation, nil
	}
	if !reservation.Status.CanTransitionTo(enums.ReservationStatusCancelled) {
		return nil, errors.New(errors.CodeStateConflict, "reservation cannot be cancelled").
			WithDetails(map[string]any{"status": reservation.Status.String()})
	}

	now := time.Now().UTC()
	reservation.Status = enums.ReservationStatusCancelled
	reservation.CancelledAt = &now

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Update(ctx, reservation); err != nil {
			return err
		}
		return s.outboxSvc.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: outbox.BookingCancelledEvent{
				ReservationID: reservation.ID,
				CustomerID:    reservation.CustomerID,
				CancelledAt:   now,
				Reason:        reason,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListDuePendingPayment(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		reservation := due[i]
		now := time.Now().UTC()
		reservation.Status = enums.ReservationStatusExpired
		reservation.ExpiredAt = &now

		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			if err := txRepo.Update(ctx, &reservation); err != nil {
				return err
			}
			return s.outboxSvc.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBookingExpired,
				AggregateType: enums.AggregateReservation,
				AggregateID:   reservation.ID,
				Data: outbox.BookingExpiredEvent{
					ReservationID: reservation.ID,
					CustomerID:    reservation.CustomerID,
					ExpiredAt:     now,
				},
				Version: 1,
			})
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) validateCreate(ctx context.Context, input *CreateReservationInput) error {
	if input.CustomerID == uuid.Nil {
		return errors.New(errors.CodeValidation, "customer id is required")
	}
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	if input.IdempotencyKey == "" {
		return errors.New(errors.CodeIdempotency, "idempotency key is required")
	}
	input.ModelCode = strings.TrimSpace(input.ModelCode)
	input.Color = strings.TrimSpace(input.Color)
	input.BatteryVariant = strings.TrimSpace(input.BatteryVariant)
	if input.ModelCode == "" || input.Color == "" || input.BatteryVariant == "" {
		return errors.New(errors.CodeValidation, "model code, color and battery variant are required")
	}
	if input.BookingAmount < s.cfg.MinBookingAmount {
		return errors.New(errors.CodeInvalidAmount, "booking amount is below the minimum").
			WithDetails(map[string]any{"minimum": s.cfg.MinBookingAmount})
	}
	if input.TotalAmount <= 0 || input.BookingAmount > input.TotalAmount {
		return errors.New(errors.CodeInvalidAmount, "booking amount cannot exceed total amount")
	}
	if input.ReferredBy != nil {
		trimmed := strings.TrimSpace(*input.ReferredBy)
		if trimmed == "" {
			input.ReferredBy = nil
		} else {
			input.ReferredBy = &trimmed
		}
	}

	input.TermsReceiptRef = strings.TrimSpace(input.TermsReceiptRef)
	if input.TermsReceiptRef == "" {
		return errors.New(errors.CodeValidation, "terms receipt is required")
	}
	ok, err := s.terms.ReceiptValid(ctx, input.CustomerID, input.TermsReceiptRef)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.CodeUnauthorized, "terms acceptance receipt is not valid")
	}
	return nil
}

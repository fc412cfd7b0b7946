package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/gateway"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
)

// Service bridges reservations to the payment gateway. Opening a checkout
// creates exactly one gateway order per attempt; each outcome callback
// resolves the attempt once, and only the first terminal outcome sticks.
type Service interface {
	OpenCheckout(ctx context.Context, input OpenCheckoutInput) (*models.PaymentSession, error)
	ResolveOutcome(ctx context.Context, gatewayRef string, status enums.PaymentSessionStatus) (*models.PaymentSession, error)
	SessionByGatewayRef(ctx context.Context, gatewayRef string) (*models.PaymentSession, error)
	OpenSessionFor(ctx context.Context, reservationID uuid.UUID) (*models.PaymentSession, error)
}

// OpenCheckoutInput identifies the reservation to pay for plus the gateway
// payment source captured on the client.
type OpenCheckoutInput struct {
	ReservationID uuid.UUID
	SourceID      string
	CustomerID    uuid.UUID
}

type reservationLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, params gateway.OrderCreateParams) (*gateway.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo         Repository
	db           txRunner
	reservations reservationLoader
	gateway      orderCreator
	metrics      *metrics.TransactionMetrics
	logg         *logger.Logger
}

func NewService(
	repo Repository,
	db txRunner,
	reservations reservationLoader,
	gw orderCreator,
	txMetrics *metrics.TransactionMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("checkout tx runner required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("checkout reservation loader required")
	}
	if gw == nil {
		return nil, fmt.Errorf("checkout gateway client required")
	}
	return &service{
		repo:         repo,
		db:           db,
		reservations: reservations,
		gateway:      gw,
		metrics:      txMetrics,
		logg:         logg,
	}, nil
}

func (s *service) OpenCheckout(ctx context.Context, input OpenCheckoutInput) (*models.PaymentSession, error) {
	if input.ReservationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}

	reservation, err := s.reservations.FindByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, errors.New(errors.CodeNotFound, "reservation not found")
	}
	if input.CustomerID != uuid.Nil && reservation.CustomerID != input.CustomerID {
		return nil, errors.New(errors.CodeUnauthorized, "reservation belongs to another customer")
	}
	if reservation.Status != enums.ReservationStatusPendingPayment {
		return nil, errors.New(errors.CodeStateConflict, "reservation is not awaiting payment").
			WithDetails(map[string]any{"status": reservation.Status.String()})
	}
	if time.Now().UTC().After(reservation.ExpiresAt) {
		return nil, errors.New(errors.CodeStateConflict, "reservation has expired")
	}

	open, err := s.repo.FindOpenByReservation(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, errors.New(errors.CodeSessionAlreadyOpen, "a checkout session is already open for this reservation").
			WithDetails(map[string]any{"gateway_ref": open.GatewayRef})
	}

	sessionID := uuid.New()
	order, err := s.gateway.CreateOrder(ctx, gateway.OrderCreateParams{
		Amount:         reservation.BookingAmount,
		CustomerID:     reservation.CustomerID.String(),
		SourceID:       input.SourceID,
		ReservationID:  reservation.ID.String(),
		IdempotencyKey: sessionID.String(),
		Note:           fmt.Sprintf("pre-booking %s", reservation.ModelCode),
	})
	if err != nil {
		s.metrics.IncOutcomeResolved("open_failed")
		return nil, err
	}

	session := &models.PaymentSession{
		ID:            sessionID,
		GatewayRef:    order.Ref,
		ReservationID: reservation.ID,
		Amount:        reservation.BookingAmount,
		Status:        enums.PaymentSessionStatusOpened,
		OpenedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithGatewayRef(ctx, session.GatewayRef)
		s.logg.Info(logCtx, "checkout session opened")
	}
	s.metrics.IncOutcomeResolved("opened")
	return session, nil
}

func (s *service) ResolveOutcome(ctx context.Context, gatewayRef string, status enums.PaymentSessionStatus) (*models.PaymentSession, error) {
	if gatewayRef == "" {
		return nil, errors.New(errors.CodeValidation, "gateway ref is required")
	}
	if !status.IsTerminal() {
		return nil, errors.New(errors.CodeValidation, "outcome must be terminal").
			WithDetails(map[string]any{"status": status.String()})
	}

	session, err := s.repo.FindByGatewayRef(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New(errors.CodeNotFound, "payment session not found")
	}

	// First terminal outcome wins. A duplicate of the recorded outcome is
	// idempotent; a late conflicting report is ignored.
	if session.Status.IsTerminal() {
		if session.Status != status && s.logg != nil {
			logCtx := s.logg.WithGatewayRef(ctx, gatewayRef)
			s.logg.Warn(logCtx, fmt.Sprintf("ignoring late outcome %s, session already %s", status, session.Status))
		}
		return session, nil
	}

	now := time.Now().UTC()
	session.Status = status
	session.ResolvedAt = &now
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.IncOutcomeResolved(status.String())
	return session, nil
}

// OpenSessionFor returns the reservation's open session, or nil when every
// attempt has resolved.
func (s *service) OpenSessionFor(ctx context.Context, reservationID uuid.UUID) (*models.PaymentSession, error) {
	if reservationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}
	return s.repo.FindOpenByReservation(ctx, reservationID)
}

func (s *service) SessionByGatewayRef(ctx context.Context, gatewayRef string) (*models.PaymentSession, error) {
	if gatewayRef == "" {
		return nil, errors.New(errors.CodeValidation, "gateway ref is required")
	}
	session, err := s.repo.FindByGatewayRef(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New(errors.CodeNotFound, "payment session not found")
	}
	return session, nil
}

package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/internal/checkout"
	"github.com/voltara/prebooking-backend/internal/settlement"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

// Service drives a reservation through payment end to end: it opens the
// checkout, accepts the gateway's outcome, and hands captured payments to
// settlement. Per reservation, only one submission runs at a time.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.PaymentSession, error)
	HandleGatewayOutcome(ctx context.Context, input OutcomeInput) (*OutcomeResult, error)
	Status(ctx context.Context, reservationID uuid.UUID) (*TransactionStatus, error)
}

type SubmitInput struct {
	ReservationID uuid.UUID
	CustomerID    uuid.UUID
	SourceID      string
}

type OutcomeInput struct {
	GatewayRef string
	Status     enums.PaymentSessionStatus
}

// OutcomeResult reports what the outcome led to. Settlement is nil unless
// the payment completed and settled in this call.
type OutcomeResult struct {
	Session    *models.PaymentSession
	Settlement *settlement.SettlementResult
	Phase      Phase
}

// TransactionStatus is the derived snapshot of one reservation's journey.
type TransactionStatus struct {
	Reservation *models.Reservation
	OpenSession *models.PaymentSession
	Phase       Phase
}

type reservationLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

type service struct {
	bookings   reservationLoader
	checkout   checkout.Service
	settlement settlement.Service
	logg       *logger.Logger

	mu     sync.Mutex
	inWork map[uuid.UUID]struct{}
}

func NewService(
	bookings reservationLoader,
	checkoutSvc checkout.Service,
	settlementSvc settlement.Service,
	logg *logger.Logger,
) (Service, error) {
	if bookings == nil {
		return nil, fmt.Errorf("coordinator reservation loader required")
	}
	if checkoutSvc == nil {
		return nil, fmt.Errorf("coordinator checkout service required")
	}
	if settlementSvc == nil {
		return nil, fmt.Errorf("coordinator settlement service required")
	}
	return &service{
		bookings:   bookings,
		checkout:   checkoutSvc,
		settlement: settlementSvc,
		logg:       logg,
		inWork:     make(map[uuid.UUID]struct{}),
	}, nil
}

// acquire claims the per-reservation work slot without blocking.
func (s *service) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inWork[id]; busy {
		return false
	}
	s.inWork[id] = struct{}{}
	return true
}

func (s *service) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inWork, id)
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.PaymentSession, error) {
	if input.ReservationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}
	if !s.acquire(input.ReservationID) {
		// A duplicate submit while one is mid-flight re-drives with the
		// session the in-flight submit already opened, if any.
		open, findErr := s.checkout.OpenSessionFor(ctx, input.ReservationID)
		if findErr == nil && open != nil {
			return open, nil
		}
		return nil, errors.New(errors.CodeConflict, "a submission is already in progress for this reservation")
	}
	defer s.release(input.ReservationID)

	session, err := s.checkout.OpenCheckout(ctx, checkout.OpenCheckoutInput{
		ReservationID: input.ReservationID,
		CustomerID:    input.CustomerID,
		SourceID:      input.SourceID,
	})
	if err == nil {
		return session, nil
	}

	// Re-driving a submission while a checkout is still open hands back the
	// open session instead of opening a second one.
	if errors.Is(err, errors.CodeSessionAlreadyOpen) {
		open, findErr := s.checkout.OpenSessionFor(ctx, input.ReservationID)
		if findErr != nil {
			return nil, findErr
		}
		if open != nil {
			return open, nil
		}
	}
	return nil, err
}

func (s *service) HandleGatewayOutcome(ctx context.Context, input OutcomeInput) (*OutcomeResult, error) {
	session, err := s.checkout.ResolveOutcome(ctx, input.GatewayRef, input.Status)
	if err != nil {
		return nil, err
	}

	result := &OutcomeResult{Session: session}
	if session.Status != enums.PaymentSessionStatusCompleted {
		reservation, err := s.bookings.Get(ctx, session.ReservationID)
		if err != nil {
			return nil, err
		}
		result.Phase = PhaseFor(reservation, nil)
		return result, nil
	}

	settled, err := s.settlement.Settle(ctx, settlement.SettleInput{
		ReservationID: session.ReservationID,
		GatewayRef:    session.GatewayRef,
	})
	if err != nil {
		// A replayed callback for a settled reservation is not a failure.
		if errors.Is(err, errors.CodeAlreadySettled) {
			result.Phase = PhaseSettled
			return result, nil
		}
		return nil, err
	}

	result.Settlement = settled
	result.Phase = PhaseSettled
	return result, nil
}

func (s *service) Status(ctx context.Context, reservationID uuid.UUID) (*TransactionStatus, error) {
	reservation, err := s.bookings.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	open, err := s.checkout.OpenSessionFor(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	return &TransactionStatus{
		Reservation: reservation,
		OpenSession: open,
		Phase:       PhaseFor(reservation, open),
	}, nil
}

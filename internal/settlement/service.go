package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/internal/booking"
	"github.com/voltara/prebooking-backend/pkg/config"
	dbpkg "github.com/voltara/prebooking-backend/pkg/db"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

// Service settles a paid reservation: it demands server-side proof of
// capture, marks the reservation paid, and posts the referral bonus ledger
// entry in the same transaction. A reservation settles exactly once.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*SettlementResult, error)
	LedgerEntry(ctx context.Context, reservationID uuid.UUID) (*models.LedgerEntry, error)
}

type SettleInput struct {
	ReservationID uuid.UUID
	GatewayRef    string
}

// SettlementResult reports the settled reservation and, when a referral
// applied, the posted ledger entry.
type SettlementResult struct {
	Reservation *models.Reservation
	Ledger      *models.LedgerEntry
}

type captureVerifier interface {
	RequireCaptured(ctx context.Context, gatewayRef string) (*models.VerificationRecord, error)
}

// ReferralInsertion asks the referral network to place the customer under
// the distributor whose code was used at booking.
type ReferralInsertion struct {
	DistributorID uuid.UUID
	CustomerID    uuid.UUID
	ReferralCode  string
	PV            int64
}

// ReferralNotifier inserts a customer into a distributor's referral network.
// Delivery is best effort and never rolls back a settlement.
type ReferralNotifier interface {
	InsertNode(ctx context.Context, insertion ReferralInsertion) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo         Repository
	reservations booking.Repository
	db           txRunner
	verifier     captureVerifier
	notifier     ReferralNotifier
	outboxSvc    *outbox.Service
	cfg          config.ReferralConfig
	tdsRate      decimal.Decimal
	metrics      *metrics.TransactionMetrics
	logg         *logger.Logger
}

func NewService(
	repo Repository,
	reservations booking.Repository,
	db txRunner,
	verifier captureVerifier,
	notifier ReferralNotifier,
	outboxSvc *outbox.Service,
	cfg config.ReferralConfig,
	txMetrics *metrics.TransactionMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("settlement reservation repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("settlement tx runner required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("settlement capture verifier required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("settlement outbox service required")
	}
	tdsRate, err := decimal.NewFromString(cfg.TDSRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tds rate %q: %w", cfg.TDSRate, err)
	}
	return &service{
		repo:         repo,
		reservations: reservations,
		db:           db,
		verifier:     verifier,
		notifier:     notifier,
		outboxSvc:    outboxSvc,
		cfg:          cfg,
		tdsRate:      tdsRate,
		metrics:      txMetrics,
		logg:         logg,
	}, nil
}

func (s *service) Settle(ctx context.Context, input SettleInput) (*SettlementResult, error) {
	if input.ReservationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}
	input.GatewayRef = strings.TrimSpace(input.GatewayRef)
	if input.GatewayRef == "" {
		return nil, errors.New(errors.CodeValidation, "gateway ref is required")
	}

	reservation, err := s.reservations.FindByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, errors.New(errors.CodeNotFound, "reservation not found")
	}
	if reservation.Status == enums.ReservationStatusPaid {
		s.metrics.IncSettlement("duplicate")
		return nil, errors.New(errors.CodeAlreadySettled, "reservation is already settled")
	}
	if !reservation.Status.CanTransitionTo(enums.ReservationStatusPaid) {
		return nil, errors.New(errors.CodeStateConflict, "reservation cannot be settled").
			WithDetails(map[string]any{"status": reservation.Status.String()})
	}

	if _, err := s.verifier.RequireCaptured(ctx, input.GatewayRef); err != nil {
		s.metrics.IncSettlement("not_captured")
		return nil, err
	}

	now := time.Now().UTC()
	reservation.Status = enums.ReservationStatusPaid
	reservation.PaidAt = &now

	var distributor *models.Distributor
	if s.referralQualifies(reservation) {
		distributor, err = s.repo.FindVerifiedDistributor(ctx, *reservation.ReferredBy)
		if err != nil {
			return nil, err
		}
	}
	entry := s.buildLedgerEntry(reservation, distributor)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.reservations.WithTx(tx).Update(ctx, reservation); err != nil {
			return err
		}
		if err := s.outboxSvc.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingPaid,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			Data: outbox.BookingPaidEvent{
				ReservationID: reservation.ID,
				CustomerID:    reservation.CustomerID,
				GatewayRef:    input.GatewayRef,
				PaidAt:        now,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		return s.outboxSvc.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBonusRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Data: outbox.BonusRecordedEvent{
				LedgerEntryID: entry.ID,
				ReservationID: reservation.ID,
				DistributorID: entry.DistributorID,
				ReferralCode:  entry.ReferralCode,
				GrossBonus:    entry.GrossBonus,
				TDSAmount:     entry.TDSAmount,
				NetAmount:     entry.NetAmount,
			},
			Version: 1,
		})
	})
	if err != nil {
		// A concurrently delivered gateway callback may have settled first;
		// its committed ledger entry trips the unique index here.
		if dbpkg.IsUniqueViolation(err, "ux_ledger_entries_reservation_id") ||
			dbpkg.IsUniqueViolation(err, "ledger_entries.reservation_id") {
			s.metrics.IncSettlement("duplicate")
			return nil, errors.New(errors.CodeAlreadySettled, "reservation is already settled")
		}
		return nil, err
	}

	s.metrics.IncSettlement("settled")
	if s.logg != nil {
		logCtx := s.logg.WithReservationID(ctx, reservation.ID.String())
		s.logg.Info(logCtx, "reservation settled")
	}

	if entry != nil {
		s.postEntry(ctx, reservation, entry)
	}
	return &SettlementResult{Reservation: reservation, Ledger: entry}, nil
}

// postEntry marks the entry Posted once the referral network has accepted
// the insertion. A failed insertion leaves the entry Pending so the
// reconciliation sweep can retry delivery later. Entries without a verified
// distributor owe the network nothing and post immediately.
func (s *service) postEntry(ctx context.Context, reservation *models.Reservation, entry *models.LedgerEntry) {
	if entry.DistributorID != nil && s.notifier != nil {
		err := s.notifier.InsertNode(ctx, ReferralInsertion{
			DistributorID: *entry.DistributorID,
			CustomerID:    reservation.CustomerID,
			ReferralCode:  entry.ReferralCode,
			PV:            reservation.BookingAmount,
		})
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, "referral network insertion failed, ledger entry left pending")
			}
			return
		}
	}
	postedAt := time.Now().UTC()
	entry.Status = enums.LedgerEntryStatusPosted
	entry.PostedAt = &postedAt
	if err := s.repo.Update(ctx, entry); err != nil {
		entry.Status = enums.LedgerEntryStatusPending
		entry.PostedAt = nil
		if s.logg != nil {
			s.logg.Warn(ctx, "ledger entry post failed, left pending")
		}
	}
}

func (s *service) referralQualifies(reservation *models.Reservation) bool {
	if reservation.ReferredBy == nil || *reservation.ReferredBy == "" {
		return false
	}
	return reservation.BookingAmount >= s.cfg.EligibilityThreshold
}

func (s *service) LedgerEntry(ctx context.Context, reservationID uuid.UUID) (*models.LedgerEntry, error) {
	if reservationID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "reservation id is required")
	}
	entry, err := s.repo.FindByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errors.New(errors.CodeNotFound, "no ledger entry for reservation")
	}
	return entry, nil
}

// buildLedgerEntry computes the referral payout, or nil when the reservation
// does not qualify. Entries start Pending and are posted only after the
// referral network acknowledges them. DistributorID stays nil when the code
// does not belong to a verified distributor.
func (s *service) buildLedgerEntry(reservation *models.Reservation, distributor *models.Distributor) *models.LedgerEntry {
	if !s.referralQualifies(reservation) {
		return nil
	}

	gross := s.cfg.FixedBonus
	tds := decimal.NewFromInt(gross).Mul(s.tdsRate).Round(0).IntPart()

	entry := &models.LedgerEntry{
		ID:            uuid.New(),
		ReservationID: reservation.ID,
		ReferralCode:  *reservation.ReferredBy,
		GrossBonus:    gross,
		TDSAmount:     tds,
		NetAmount:     gross - tds,
		Status:        enums.LedgerEntryStatusPending,
	}
	if distributor != nil {
		entry.DistributorID = &distributor.ID
	}
	return entry
}

package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/internal/booking"
	"github.com/voltara/prebooking-backend/pkg/config"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubVerifier struct {
	captured bool
	calls    int
}

func (v *stubVerifier) RequireCaptured(_ context.Context, gatewayRef string) (*models.VerificationRecord, error) {
	v.calls++
	if !v.captured {
		return nil, errors.New(errors.CodePaymentNotCaptured, "payment has not been captured")
	}
	return &models.VerificationRecord{
		GatewayRef: gatewayRef,
		Result:     enums.VerificationResultCaptured,
		VerifiedAt: time.Now().UTC(),
	}, nil
}

type captureNotifier struct {
	insertions []ReferralInsertion
	fail       error
}

func (n *captureNotifier) InsertNode(_ context.Context, insertion ReferralInsertion) error {
	if n.fail != nil {
		return n.fail
	}
	n.insertions = append(n.insertions, insertion)
	return nil
}

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  model_code TEXT NOT NULL,
  color TEXT NOT NULL,
  battery_variant TEXT NOT NULL,
  booking_amount INTEGER NOT NULL,
  total_amount INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_payment',
  idempotency_key TEXT NOT NULL,
  referred_by TEXT,
  terms_receipt_ref TEXT,
  expires_at DATETIME NOT NULL,
  paid_at DATETIME,
  cancelled_at DATETIME,
  expired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  reservation_id TEXT NOT NULL,
  referral_code TEXT NOT NULL,
  distributor_id TEXT,
  gross_bonus INTEGER NOT NULL,
  tds_amount INTEGER NOT NULL,
  net_amount INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  posted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_ledger_entries_reservation_id ON ledger_entries (reservation_id);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_type_aggregate ON outbox_events (event_type, aggregate_type, aggregate_id);`,
		`CREATE TABLE IF NOT EXISTS distributors (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  referral_code TEXT NOT NULL,
  verified INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_distributors_referral_code ON distributors (referral_code);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedReservation(t *testing.T, db *gorm.DB, mutate func(*models.Reservation)) *models.Reservation {
	t.Helper()

	referral := "REF-7788"
	reservation := &models.Reservation{
		ID:             uuid.New(),
		CustomerID:     uuid.New(),
		ModelCode:      "X1",
		Color:          "midnight-blue",
		BatteryVariant: "extended",
		BookingAmount:  6000,
		TotalAmount:    80000,
		Status:         enums.ReservationStatusPendingPayment,
		IdempotencyKey: uuid.NewString(),
		ReferredBy:     &referral,
		ExpiresAt:      time.Now().UTC().Add(72 * time.Hour),
	}
	if mutate != nil {
		mutate(reservation)
	}
	require.NoError(t, db.Create(reservation).Error)
	return reservation
}

func seedDistributor(t *testing.T, db *gorm.DB, referralCode string, verified bool) *models.Distributor {
	t.Helper()

	distributor := &models.Distributor{
		ID:           uuid.New(),
		FullName:     "Asha Patel",
		ReferralCode: referralCode,
		Verified:     verified,
	}
	require.NoError(t, db.Create(distributor).Error)
	return distributor
}

func newSettlementService(t *testing.T, db *gorm.DB, verifier *stubVerifier, notifier ReferralNotifier) Service {
	t.Helper()

	svc, err := NewService(
		NewRepository(db),
		booking.NewRepository(db),
		gormTxRunner{db: db},
		verifier,
		notifier,
		outbox.NewService(outbox.NewRepository(db), nil),
		config.ReferralConfig{FixedBonus: 1000, TDSRate: "0.10", EligibilityThreshold: 5000},
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

func TestSettleWithReferralBonus(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)
	distributor := seedDistributor(t, db, "REF-7788", true)
	notifier := &captureNotifier{}
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, notifier)

	result, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.NoError(t, err)
	require.Equal(t, enums.ReservationStatusPaid, result.Reservation.Status)
	require.NotNil(t, result.Reservation.PaidAt)

	require.NotNil(t, result.Ledger)
	require.Equal(t, int64(1000), result.Ledger.GrossBonus)
	require.Equal(t, int64(100), result.Ledger.TDSAmount)
	require.Equal(t, int64(900), result.Ledger.NetAmount)
	require.Equal(t, "REF-7788", result.Ledger.ReferralCode)
	require.NotNil(t, result.Ledger.DistributorID)
	require.Equal(t, distributor.ID, *result.Ledger.DistributorID)

	require.Len(t, notifier.insertions, 1)
	require.Equal(t, distributor.ID, notifier.insertions[0].DistributorID)
	require.Equal(t, reservation.CustomerID, notifier.insertions[0].CustomerID)
	require.Equal(t, "REF-7788", notifier.insertions[0].ReferralCode)
	require.Equal(t, int64(6000), notifier.insertions[0].PV)

	var reloadedEntry models.LedgerEntry
	require.NoError(t, db.First(&reloadedEntry, "reservation_id = ?", reservation.ID).Error)
	require.Equal(t, enums.LedgerEntryStatusPosted, reloadedEntry.Status)
	require.NotNil(t, reloadedEntry.PostedAt)

	var eventTypes []string
	require.NoError(t, db.Model(&models.OutboxEvent{}).Order("event_type").Pluck("event_type", &eventTypes).Error)
	require.Equal(t, []string{"bonus_recorded", "booking_paid"}, eventTypes)
}

func TestSettleWithoutReferral(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, func(r *models.Reservation) {
		r.ReferredBy = nil
	})
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, nil)

	result, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.NoError(t, err)
	require.Nil(t, result.Ledger)

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestSettleBelowEligibilityThreshold(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, func(r *models.Reservation) {
		r.BookingAmount = 4000
	})
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, nil)

	result, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.NoError(t, err)
	require.Equal(t, enums.ReservationStatusPaid, result.Reservation.Status)
	require.Nil(t, result.Ledger)
}

func TestSettleRequiresCapture(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)
	svc := newSettlementService(t, db, &stubVerifier{captured: false}, nil)

	_, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.True(t, errors.Is(err, errors.CodePaymentNotCaptured))

	var reloaded models.Reservation
	require.NoError(t, db.First(&reloaded, "id = ?", reservation.ID).Error)
	require.Equal(t, enums.ReservationStatusPendingPayment, reloaded.Status)
}

func TestSettleTwiceFails(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, nil)

	ctx := context.Background()
	_, err := svc.Settle(ctx, SettleInput{ReservationID: reservation.ID, GatewayRef: "pay_abc"})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, SettleInput{ReservationID: reservation.ID, GatewayRef: "pay_abc"})
	require.True(t, errors.Is(err, errors.CodeAlreadySettled))

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSettleConcurrentDuplicateIsAlreadySettled(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)

	// A parallel callback delivery settled after this call read the
	// reservation as pending; its committed entry trips the unique index.
	require.NoError(t, db.Create(&models.LedgerEntry{
		ID:            uuid.New(),
		ReservationID: reservation.ID,
		ReferralCode:  "REF-7788",
		GrossBonus:    1000,
		TDSAmount:     100,
		NetAmount:     900,
		Status:        enums.LedgerEntryStatusPosted,
	}).Error)

	svc := newSettlementService(t, db, &stubVerifier{captured: true}, nil)
	_, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.True(t, errors.Is(err, errors.CodeAlreadySettled))

	var count int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestSettleCancelledReservation(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, func(r *models.Reservation) {
		r.Status = enums.ReservationStatusCancelled
	})
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, nil)

	_, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.True(t, errors.Is(err, errors.CodeStateConflict))
}

func TestSettleUnverifiedReferralCodePostsWithoutDistributor(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)
	seedDistributor(t, db, "REF-7788", false)
	notifier := &captureNotifier{}
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, notifier)

	result, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Ledger)
	require.Nil(t, result.Ledger.DistributorID)

	// Nothing is owed to the network, so the entry posts immediately.
	require.Empty(t, notifier.insertions)
	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "reservation_id = ?", reservation.ID).Error)
	require.Equal(t, enums.LedgerEntryStatusPosted, entry.Status)
	require.NotNil(t, entry.PostedAt)
}

func TestSettleSurvivesNotifierFailure(t *testing.T) {
	db := setupSettlementTestDB(t)
	reservation := seedReservation(t, db, nil)
	seedDistributor(t, db, "REF-7788", true)
	notifier := &captureNotifier{fail: errors.New(errors.CodeDependency, "distributor network down")}
	svc := newSettlementService(t, db, &stubVerifier{captured: true}, notifier)

	result, err := svc.Settle(context.Background(), SettleInput{
		ReservationID: reservation.ID,
		GatewayRef:    "pay_abc",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Ledger)

	var reloaded models.Reservation
	require.NoError(t, db.First(&reloaded, "id = ?", reservation.ID).Error)
	require.Equal(t, enums.ReservationStatusPaid, reloaded.Status)

	// Failed delivery leaves the entry pending for the reconciliation sweep.
	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry, "reservation_id = ?", reservation.ID).Error)
	require.Equal(t, enums.LedgerEntryStatusPending, entry.Status)
	require.Nil(t, entry.PostedAt)
}

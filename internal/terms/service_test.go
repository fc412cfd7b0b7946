package terms

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

type captureSender struct {
	channel    enums.ChallengeChannel
	identifier string
	code       string
	calls      int
}

func (s *captureSender) Deliver(_ context.Context, channel enums.ChallengeChannel, identifier, code string) error {
	s.channel = channel
	s.identifier = identifier
	s.code = code
	s.calls++
	return nil
}

func setupTermsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS terms_documents (
  id TEXT PRIMARY KEY,
  document_id TEXT NOT NULL,
  version TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS acceptance_challenges (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  document_id TEXT NOT NULL,
  document_version TEXT NOT NULL,
  identifier TEXT NOT NULL,
  channel TEXT NOT NULL,
  code_hash TEXT NOT NULL,
  issued_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  attempts_remaining INTEGER NOT NULL,
  verified INTEGER NOT NULL DEFAULT 0,
  locked INTEGER NOT NULL DEFAULT 0,
  receipt_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
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
  CONSTRAINT ux_outbox_events_type_aggregate UNIQUE (event_type, aggregate_type, aggregate_id)
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newTermsService(t *testing.T, db *gorm.DB, sender Sender, cfg config.OTPConfig) Service {
	t.Helper()
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, sender, outboxSvc, cfg, nil)
	require.NoError(t, err)
	return svc
}

func defaultOTPConfig() config.OTPConfig {
	return config.OTPConfig{
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
		CodeLength:  6,
		HashSalt:    "test-salt",
	}
}

func seedCustomer(t *testing.T, db *gorm.DB, email, phone string) models.Customer {
	t.Helper()
	customer := models.Customer{ID: uuid.New(), FullName: "Asha Rao"}
	if email != "" {
		customer.Email = &email
	}
	if phone != "" {
		customer.Phone = &phone
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

func seedDocument(t *testing.T, db *gorm.DB, documentID, version string, active bool) models.TermsDocument {
	t.Helper()
	doc := models.TermsDocument{ID: uuid.New(), DocumentID: documentID, Version: version, Active: active}
	require.NoError(t, db.Create(&doc).Error)
	return doc
}

func TestRequestChallengeIssuesCode(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, defaultOTPConfig())

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, issued.ChallengeID)
	require.Equal(t, 1, sender.calls)
	require.Len(t, sender.code, 6)
	require.Equal(t, "asha@example.in", sender.identifier)
	require.Contains(t, issued.Identifier, "****")

	var stored models.AcceptanceChallenge
	require.NoError(t, db.First(&stored, "id = ?", issued.ChallengeID).Error)
	require.NotEqual(t, sender.code, stored.CodeHash)
	require.Equal(t, 5, stored.AttemptsRemaining)
}

func TestRequestChallengeSupersedesPrevious(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, defaultOTPConfig())

	first, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)
	firstCode := sender.code

	second, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ChallengeID, second.ChallengeID)

	// The superseded challenge no longer verifies, even with its own code.
	_, err = svc.VerifyChallenge(context.Background(), first.ChallengeID, firstCode)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeChallengeExpired))

	// The fresh one does.
	receipt, err := svc.VerifyChallenge(context.Background(), second.ChallengeID, sender.code)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.ReceiptRef)
}

func TestVerifyChallengeSuccessEmitsReceipt(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "", "9876543210")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, defaultOTPConfig())

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelSMS,
	})
	require.NoError(t, err)

	receipt, err := svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.ReceiptRef)
	require.Equal(t, "prebooking-terms", receipt.DocumentID)
	require.Equal(t, "v3", receipt.DocumentVersion)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventTermsAccepted, events[0].EventType)
}

func TestVerifyChallengeIdempotentReVerify(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, defaultOTPConfig())

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)

	first, err := svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.NoError(t, err)

	second, err := svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.NoError(t, err)
	require.Equal(t, first.ReceiptRef, second.ReceiptRef)

	// Only one acceptance event regardless of re-verification.
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestVerifyChallengeWrongCodeLocksAfterAttempts(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	cfg := defaultOTPConfig()
	cfg.MaxAttempts = 2

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, cfg)

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.VerifyChallenge(context.Background(), issued.ChallengeID, "000000")
		require.Error(t, err)
		require.True(t, errors.Is(err, errors.CodeCodeMismatch))
	}

	// Locked now, even with the correct code.
	_, err = svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeChallengeExpired))
}

func TestConsumeAttemptNeverUnderflows(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	cfg := defaultOTPConfig()
	cfg.MaxAttempts = 1

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, cfg)

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)

	// Two wrong-code submissions racing on the last attempt: the guarded
	// update lets exactly one of them spend it.
	repo := NewRepository(db)
	remaining, claimed, err := repo.ConsumeAttempt(context.Background(), issued.ChallengeID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, 0, remaining)

	_, claimed, err = repo.ConsumeAttempt(context.Background(), issued.ChallengeID)
	require.NoError(t, err)
	require.False(t, claimed)

	var stored models.AcceptanceChallenge
	require.NoError(t, db.First(&stored, "id = ?", issued.ChallengeID).Error)
	require.Equal(t, 0, stored.AttemptsRemaining)

	// The loser surfaces the attempt ceiling, not a negative counter.
	_, err = svc.VerifyChallenge(context.Background(), issued.ChallengeID, "000000")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeChallengeExpired))
}

func TestVerifyChallengeExpired(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	cfg := defaultOTPConfig()
	cfg.TTL = -time.Minute

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, cfg)

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)

	_, err = svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeChallengeExpired))
}

func TestReceiptValid(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	sender := &captureSender{}
	svc := newTermsService(t, db, sender, defaultOTPConfig())

	issued, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.NoError(t, err)

	receipt, err := svc.VerifyChallenge(context.Background(), issued.ChallengeID, sender.code)
	require.NoError(t, err)

	ok, err := svc.ReceiptValid(context.Background(), customer.ID, receipt.ReceiptRef)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.ReceiptValid(context.Background(), customer.ID, "tr-unknown")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.ReceiptValid(context.Background(), uuid.New(), receipt.ReceiptRef)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequestChallengeNoActiveDocument(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "asha@example.in", "")
	seedDocument(t, db, "prebooking-terms", "v2", false)

	svc := newTermsService(t, db, &captureSender{}, defaultOTPConfig())

	_, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelEmail,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeDocumentUnavailable))
}

func TestRequestChallengeMissingContact(t *testing.T) {
	db := setupTermsTestDB(t)
	customer := seedCustomer(t, db, "", "")
	seedDocument(t, db, "prebooking-terms", "v3", true)

	svc := newTermsService(t, db, &captureSender{}, defaultOTPConfig())

	_, err := svc.RequestChallenge(context.Background(), RequestChallengeInput{
		CustomerID: customer.ID,
		DocumentID: "prebooking-terms",
		Channel:    enums.ChallengeChannelSMS,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeContactMissing))
}

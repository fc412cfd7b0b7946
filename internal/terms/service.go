package terms

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltara/prebooking-backend/pkg/config"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	"github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/outbox"
)

// Service gates booking on proof that the customer accepted the active terms
// document. Codes are delivered out of band and only their salted hashes are
// stored.
type Service interface {
	RequestChallenge(ctx context.Context, input RequestChallengeInput) (*ChallengeIssued, error)
	VerifyChallenge(ctx context.Context, challengeID uuid.UUID, code string) (*AcceptanceReceipt, error)
	ReceiptValid(ctx context.Context, customerID uuid.UUID, receiptRef string) (bool, error)
}

// RequestChallengeInput identifies the customer, document, and delivery channel.
type RequestChallengeInput struct {
	CustomerID uuid.UUID
	DocumentID string
	Channel    enums.ChallengeChannel
}

// ChallengeIssued is returned to the caller; the code itself never is.
type ChallengeIssued struct {
	ChallengeID uuid.UUID
	Channel     enums.ChallengeChannel
	Identifier  string
	ExpiresAt   time.Time
}

// AcceptanceReceipt proves a verified acceptance of a document version.
type AcceptanceReceipt struct {
	ReceiptRef      string
	DocumentID      string
	DocumentVersion string
	AcceptedAt      time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      Repository
	db        txRunner
	sender    Sender
	outboxSvc *outbox.Service
	cfg       config.OTPConfig
	logg      *logger.Logger
}

// NewService wires the terms acceptance gate.
func NewService(repo Repository, db txRunner, sender Sender, outboxSvc *outbox.Service, cfg config.OTPConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("terms repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("terms tx runner required")
	}
	if sender == nil {
		return nil, fmt.Errorf("terms sender required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("terms outbox service required")
	}
	if strings.TrimSpace(cfg.HashSalt) == "" {
		return nil, fmt.Errorf("terms hash salt required")
	}
	return &service{
		repo:      repo,
		db:        db,
		sender:    sender,
		outboxSvc: outboxSvc,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) RequestChallenge(ctx context.Context, input RequestChallengeInput) (*ChallengeIssued, error) {
	if input.CustomerID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "customer id is required")
	}
	if strings.TrimSpace(input.DocumentID) == "" {
		return nil, errors.New(errors.CodeValidation, "document id is required")
	}
	if !input.Channel.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unsupported challenge channel")
	}

	doc, err := s.repo.FindActiveDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New(errors.CodeDocumentUnavailable, "no active terms document for this id")
	}

	customer, err := s.repo.FindCustomer(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, errors.New(errors.CodeNotFound, "customer not found")
	}

	identifier, err := contactFor(customer, input.Channel)
	if err != nil {
		return nil, err
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generating challenge code: %w", err)
	}

	now := time.Now().UTC()
	challenge := &models.AcceptanceChallenge{
		ID:                uuid.New(),
		CustomerID:        input.CustomerID,
		DocumentID:        doc.DocumentID,
		DocumentVersion:   doc.Version,
		Identifier:        identifier,
		Channel:           input.Channel,
		CodeHash:          hashCodeHex(identifier, code, s.cfg.HashSalt),
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.cfg.TTL),
		AttemptsRemaining: s.cfg.MaxAttempts,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.SupersedeUnverified(ctx, input.CustomerID, doc.DocumentID); err != nil {
			return err
		}
		return txRepo.CreateChallenge(ctx, challenge)
	})
	if err != nil {
		return nil, err
	}

	// Delivery is best effort; the challenge stays valid and the customer can
	// request a new one if the message never arrives.
	if err := s.sender.Deliver(ctx, input.Channel, identifier, code); err != nil && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "challenge_id", challenge.ID.String())
		s.logg.Error(logCtx, "challenge delivery failed", err)
	}

	return &ChallengeIssued{
		ChallengeID: challenge.ID,
		Channel:     input.Channel,
		Identifier:  maskIdentifier(identifier),
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

func (s *service) VerifyChallenge(ctx context.Context, challengeID uuid.UUID, code string) (*AcceptanceReceipt, error) {
	if challengeID == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "challenge id is required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New(errors.CodeValidation, "code is required")
	}

	challenge, err := s.repo.FindChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, errors.New(errors.CodeNotFound, "challenge not found")
	}

	matches := codeMatches(challenge, code, s.cfg.HashSalt)

	// Re-verifying an already accepted challenge with the right code returns
	// the original receipt.
	if challenge.Verified {
		if !matches {
			return nil, errors.New(errors.CodeCodeMismatch, "code does not match")
		}
		return receiptFor(challenge), nil
	}

	now := time.Now().UTC()
	if challenge.Locked {
		return nil, errors.New(errors.CodeChallengeExpired, "challenge is no longer active")
	}
	if now.After(challenge.ExpiresAt) {
		return nil, errors.New(errors.CodeChallengeExpired, "challenge has expired")
	}
	if challenge.AttemptsRemaining <= 0 {
		return nil, errors.New(errors.CodeChallengeExpired, "attempt limit reached")
	}

	if !matches {
		remaining, claimed, err := s.repo.ConsumeAttempt(ctx, challenge.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// A concurrent wrong-code submission spent the last attempt first.
			return nil, errors.New(errors.CodeChallengeExpired, "attempt limit reached")
		}
		if remaining <= 0 {
			if err := s.repo.LockChallenge(ctx, challenge.ID); err != nil {
				return nil, err
			}
		}
		return nil, errors.New(errors.CodeCodeMismatch, "code does not match").
			WithDetails(map[string]any{"attempts_remaining": remaining})
	}

	receiptRef := "tr-" + uuid.NewString()
	challenge.Verified = true
	challenge.ReceiptRef = &receiptRef
	challenge.UpdatedAt = now

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.UpdateChallenge(ctx, challenge); err != nil {
			return err
		}
		return s.outboxSvc.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTermsAccepted,
			AggregateType: enums.AggregateChallenge,
			AggregateID:   challenge.ID,
			Data: outbox.TermsAcceptedEvent{
				ChallengeID: challenge.ID,
				CustomerID:  challenge.CustomerID,
				DocumentID:  challenge.DocumentID,
				Version:     challenge.DocumentVersion,
				ReceiptRef:  receiptRef,
				AcceptedAt:  now,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	return receiptFor(challenge), nil
}

func (s *service) ReceiptValid(ctx context.Context, customerID uuid.UUID, receiptRef string) (bool, error) {
	if customerID == uuid.Nil || strings.TrimSpace(receiptRef) == "" {
		return false, nil
	}
	challenge, err := s.repo.FindVerifiedReceipt(ctx, customerID, receiptRef)
	if err != nil {
		return false, err
	}
	return challenge != nil, nil
}

func receiptFor(challenge *models.AcceptanceChallenge) *AcceptanceReceipt {
	ref := ""
	if challenge.ReceiptRef != nil {
		ref = *challenge.ReceiptRef
	}
	return &AcceptanceReceipt{
		ReceiptRef:      ref,
		DocumentID:      challenge.DocumentID,
		DocumentVersion: challenge.DocumentVersion,
		AcceptedAt:      challenge.UpdatedAt,
	}
}

func contactFor(customer *models.Customer, channel enums.ChallengeChannel) (string, error) {
	switch channel {
	case enums.ChallengeChannelEmail:
		if customer.Email == nil || strings.TrimSpace(*customer.Email) == "" {
			return "", errors.New(errors.CodeContactMissing, "customer has no email on file")
		}
		return *customer.Email, nil
	case enums.ChallengeChannelSMS:
		if customer.Phone == nil || strings.TrimSpace(*customer.Phone) == "" {
			return "", errors.New(errors.CodeContactMissing, "customer has no phone on file")
		}
		return *customer.Phone, nil
	default:
		return "", errors.New(errors.CodeValidation, "unsupported challenge channel")
	}
}

func codeMatches(challenge *models.AcceptanceChallenge, code, salt string) bool {
	provided := hashCodeBytes(challenge.Identifier, code, salt)
	stored, err := hex.DecodeString(challenge.CodeHash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(provided, stored) == 1
}

func generateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

func hashCodeHex(identifier, code, salt string) string {
	return hex.EncodeToString(hashCodeBytes(identifier, code, salt))
}

func hashCodeBytes(identifier, code, salt string) []byte {
	data := fmt.Sprintf("%s:%s:%s", identifier, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hash[:]
}

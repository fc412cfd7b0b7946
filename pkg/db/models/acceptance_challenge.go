package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/pkg/enums"
)

// AcceptanceChallenge is a one-time-code challenge proving the customer
// accepted a versioned legal document. Only the salted hash of the code is
// stored. At most one unverified challenge exists per (customer, document);
// issuing a new one supersedes the previous.
type AcceptanceChallenge struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index:ix_challenges_customer_document"`
	DocumentID        string                 `gorm:"column:document_id;not null;index:ix_challenges_customer_document"`
	DocumentVersion   string                 `gorm:"column:document_version;not null"`
	Identifier        string                 `gorm:"column:identifier;not null"`
	Channel           enums.ChallengeChannel `gorm:"column:channel;type:text;not null"`
	CodeHash          string                 `gorm:"column:code_hash;not null"`
	IssuedAt          time.Time              `gorm:"column:issued_at;not null"`
	ExpiresAt         time.Time              `gorm:"column:expires_at;not null"`
	AttemptsRemaining int                    `gorm:"column:attempts_remaining;not null"`
	Verified          bool                   `gorm:"column:verified;not null;default:false"`
	Locked            bool                   `gorm:"column:locked;not null;default:false"`
	ReceiptRef        *string                `gorm:"column:receipt_ref"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

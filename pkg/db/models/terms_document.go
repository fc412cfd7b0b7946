package models

import (
	"time"

	"github.com/google/uuid"
)

// TermsDocument is one version of a legal document customers must accept
// before reserving. Only the active version can be challenged against.
type TermsDocument struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DocumentID string    `gorm:"column:document_id;not null;index"`
	Version    string    `gorm:"column:version;not null"`
	Active     bool      `gorm:"column:active;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uuid.UUID
	FullName   string
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to customers.
type AccessTokenClaims struct {
	CustomerID uuid.UUID `json:"customer_id"`
	FullName   string    `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

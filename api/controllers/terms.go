package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/api/middleware"
	"github.com/voltara/prebooking-backend/api/responses"
	"github.com/voltara/prebooking-backend/api/validators"
	termssvc "github.com/voltara/prebooking-backend/internal/terms"
	"github.com/voltara/prebooking-backend/pkg/enums"
	pkgerrors "github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

// RequestTermsChallenge issues a verification code for the active terms
// document. The code travels over the chosen channel, never over this API.
func RequestTermsChallenge(svc termssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "terms service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload requestChallengeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channel, err := enums.ParseChallengeChannel(payload.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
			return
		}

		issued, err := svc.RequestChallenge(r.Context(), termssvc.RequestChallengeInput{
			CustomerID: customerID,
			DocumentID: payload.DocumentID,
			Channel:    channel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, challengeResponse{
			ChallengeID: issued.ChallengeID,
			Channel:     issued.Channel.String(),
			Identifier:  issued.Identifier,
			ExpiresAt:   issued.ExpiresAt.Unix(),
		})
	}
}

// VerifyTermsChallenge checks the submitted code and returns the acceptance
// receipt on success.
func VerifyTermsChallenge(svc termssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "terms service unavailable"))
			return
		}

		if _, err := customerIDFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyChallengeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.VerifyChallenge(r.Context(), payload.ChallengeID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, receiptResponse{
			ReceiptRef:      receipt.ReceiptRef,
			DocumentID:      receipt.DocumentID,
			DocumentVersion: receipt.DocumentVersion,
			AcceptedAt:      receipt.AcceptedAt.Unix(),
		})
	}
}

type requestChallengeRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Channel    string `json:"channel" validate:"required,oneof=email sms"`
}

type verifyChallengeRequest struct {
	ChallengeID uuid.UUID `json:"challenge_id" validate:"required"`
	Code        string    `json:"code" validate:"required,min=4,max=10"`
}

type challengeResponse struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	Channel     string    `json:"channel"`
	Identifier  string    `json:"identifier"`
	ExpiresAt   int64     `json:"expires_at"`
}

type receiptResponse struct {
	ReceiptRef      string `json:"receipt_ref"`
	DocumentID      string `json:"document_id"`
	DocumentVersion string `json:"document_version"`
	AcceptedAt      int64  `json:"accepted_at"`
}

func customerIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing customer context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid customer context")
	}
	return id, nil
}

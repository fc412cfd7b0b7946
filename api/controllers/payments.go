package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/api/responses"
	"github.com/voltara/prebooking-backend/api/validators"
	bookingsvc "github.com/voltara/prebooking-backend/internal/booking"
	coordinatorsvc "github.com/voltara/prebooking-backend/internal/coordinator"
	settlementsvc "github.com/voltara/prebooking-backend/internal/settlement"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/enums"
	pkgerrors "github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

// SubmitPayment opens a checkout session for a reservation.
func SubmitPayment(svc coordinatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coordinator unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload submitPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Submit(r.Context(), coordinatorsvc.SubmitInput{
			ReservationID: payload.ReservationID,
			CustomerID:    customerID,
			SourceID:      payload.SourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(session))
	}
}

// PaymentCallback receives the client-reported checkout outcome. A completed
// report triggers server-side verification and settlement; the client's word
// alone never marks anything paid.
func PaymentCallback(svc coordinatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coordinator unavailable"))
			return
		}

		if _, err := customerIDFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentSessionStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		result, err := svc.HandleGatewayOutcome(r.Context(), coordinatorsvc.OutcomeInput{
			GatewayRef: payload.GatewayRef,
			Status:     status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOutcomeResponse(result))
	}
}

// TransactionStatus reports where a reservation stands in the payment flow.
func TransactionStatus(svc coordinatorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coordinator unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationID, err := uuid.Parse(chi.URLParam(r, "reservationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		status, err := svc.Status(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if status.Reservation.CustomerID != customerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found"))
			return
		}

		resp := transactionStatusResponse{
			Reservation: newReservationResponse(status.Reservation),
			Phase:       status.Phase.String(),
		}
		if status.OpenSession != nil {
			session := newSessionResponse(status.OpenSession)
			resp.OpenSession = &session
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetLedgerEntry returns the referral bonus posted for a settled reservation.
func GetLedgerEntry(svc settlementsvc.Service, bookings bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		reservation, err := loadOwnedReservation(r, bookings)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.LedgerEntry(r.Context(), reservation.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ledgerEntryResponse{
			LedgerEntryID: entry.ID,
			ReservationID: entry.ReservationID,
			ReferralCode:  entry.ReferralCode,
			GrossBonus:    entry.GrossBonus,
			TDSAmount:     entry.TDSAmount,
			NetAmount:     entry.NetAmount,
			Status:        entry.Status.String(),
		})
	}
}

type submitPaymentRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" validate:"required"`
	SourceID      string    `json:"source_id" validate:"required"`
}

type paymentCallbackRequest struct {
	GatewayRef string `json:"gateway_ref" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=completed user_cancelled dismissed"`
}

type sessionResponse struct {
	SessionID  uuid.UUID `json:"session_id"`
	GatewayRef string    `json:"gateway_ref"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	OpenedAt   int64     `json:"opened_at"`
}

type outcomeResponse struct {
	Session sessionResponse      `json:"session"`
	Phase   string               `json:"phase"`
	Ledger  *ledgerEntryResponse `json:"ledger,omitempty"`
}

type transactionStatusResponse struct {
	Reservation reservationResponse `json:"reservation"`
	OpenSession *sessionResponse    `json:"open_session,omitempty"`
	Phase       string              `json:"phase"`
}

type ledgerEntryResponse struct {
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	ReferralCode  string    `json:"referral_code"`
	GrossBonus    int64     `json:"gross_bonus"`
	TDSAmount     int64     `json:"tds_amount"`
	NetAmount     int64     `json:"net_amount"`
	Status        string    `json:"status"`
}

func newSessionResponse(session *models.PaymentSession) sessionResponse {
	return sessionResponse{
		SessionID:  session.ID,
		GatewayRef: session.GatewayRef,
		Amount:     session.Amount,
		Status:     session.Status.String(),
		OpenedAt:   session.OpenedAt.Unix(),
	}
}

func newOutcomeResponse(result *coordinatorsvc.OutcomeResult) outcomeResponse {
	resp := outcomeResponse{
		Session: newSessionResponse(result.Session),
		Phase:   result.Phase.String(),
	}
	if result.Settlement != nil && result.Settlement.Ledger != nil {
		entry := result.Settlement.Ledger
		resp.Ledger = &ledgerEntryResponse{
			LedgerEntryID: entry.ID,
			ReservationID: entry.ReservationID,
			ReferralCode:  entry.ReferralCode,
			GrossBonus:    entry.GrossBonus,
			TDSAmount:     entry.TDSAmount,
			NetAmount:     entry.NetAmount,
			Status:        entry.Status.String(),
		}
	}
	return resp
}

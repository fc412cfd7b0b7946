package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/api/responses"
	"github.com/voltara/prebooking-backend/api/validators"
	bookingsvc "github.com/voltara/prebooking-backend/internal/booking"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	pkgerrors "github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
	"github.com/voltara/prebooking-backend/pkg/metrics"
)

const idempotencyKeyHeader = "Idempotency-Key"

// CreateBooking reserves a vehicle configuration. Callers supply an
// Idempotency-Key header; replays return the original reservation.
func CreateBooking(svc bookingsvc.Service, txMetrics *metrics.TransactionMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		if key == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key header is required"))
			return
		}

		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Create(r.Context(), bookingsvc.CreateReservationInput{
			CustomerID:      customerID,
			ModelCode:       payload.ModelCode,
			Color:           payload.Color,
			BatteryVariant:  payload.BatteryVariant,
			BookingAmount:   payload.BookingAmount,
			TotalAmount:     payload.TotalAmount,
			IdempotencyKey:  key,
			ReferredBy:      payload.ReferredBy,
			TermsReceiptRef: payload.TermsReceiptRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txMetrics.IncBookingCreated(reservation.ModelCode)
		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(reservation))
	}
}

// GetBooking returns one of the caller's reservations.
func GetBooking(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservation, err := loadOwnedReservation(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReservationResponse(reservation))
	}
}

// CancelBooking cancels a reservation that has not yet been paid.
func CancelBooking(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservation, err := loadOwnedReservation(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelBookingRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		cancelled, err := svc.Cancel(r.Context(), reservation.ID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReservationResponse(cancelled))
	}
}

func loadOwnedReservation(r *http.Request, svc bookingsvc.Service) (*models.Reservation, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable")
	}
	customerID, err := customerIDFromContext(r)
	if err != nil {
		return nil, err
	}
	reservationID, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id")
	}
	reservation, err := svc.Get(r.Context(), reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

type createBookingRequest struct {
	ModelCode       string  `json:"model_code" validate:"required"`
	Color           string  `json:"color" validate:"required"`
	BatteryVariant  string  `json:"battery_variant" validate:"required"`
	BookingAmount   int64   `json:"booking_amount" validate:"required,min=1"`
	TotalAmount     int64   `json:"total_amount" validate:"required,min=1"`
	ReferredBy      *string `json:"referred_by,omitempty"`
	TermsReceiptRef string  `json:"terms_receipt_ref" validate:"required"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type reservationResponse struct {
	ReservationID  uuid.UUID `json:"reservation_id"`
	ModelCode      string    `json:"model_code"`
	Color          string    `json:"color"`
	BatteryVariant string    `json:"battery_variant"`
	BookingAmount  int64     `json:"booking_amount"`
	TotalAmount    int64     `json:"total_amount"`
	Status         string    `json:"status"`
	ReferredBy     *string   `json:"referred_by,omitempty"`
	ExpiresAt      int64     `json:"expires_at"`
	PaidAt         *int64    `json:"paid_at,omitempty"`
	CancelledAt    *int64    `json:"cancelled_at,omitempty"`
}

func newReservationResponse(reservation *models.Reservation) reservationResponse {
	resp := reservationResponse{
		ReservationID:  reservation.ID,
		ModelCode:      reservation.ModelCode,
		Color:          reservation.Color,
		BatteryVariant: reservation.BatteryVariant,
		BookingAmount:  reservation.BookingAmount,
		TotalAmount:    reservation.TotalAmount,
		Status:         reservation.Status.String(),
		ReferredBy:     reservation.ReferredBy,
		ExpiresAt:      reservation.ExpiresAt.Unix(),
	}
	if reservation.PaidAt != nil {
		ts := reservation.PaidAt.Unix()
		resp.PaidAt = &ts
	}
	if reservation.CancelledAt != nil {
		ts := reservation.CancelledAt.Unix()
		resp.CancelledAt = &ts
	}
	return resp
}

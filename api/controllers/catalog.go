package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltara/prebooking-backend/api/responses"
	catalogsvc "github.com/voltara/prebooking-backend/internal/catalog"
	"github.com/voltara/prebooking-backend/pkg/db/models"
	pkgerrors "github.com/voltara/prebooking-backend/pkg/errors"
	"github.com/voltara/prebooking-backend/pkg/logger"
)

// ListVariants returns the active catalog configurations with their prices.
func ListVariants(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		variants, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]variantResponse, 0, len(variants))
		for _, variant := range variants {
			out = append(out, newVariantResponse(variant))
		}
		responses.WriteSuccess(w, out)
	}
}

type variantResponse struct {
	VariantID      uuid.UUID `json:"variant_id"`
	ModelCode      string    `json:"model_code"`
	Color          string    `json:"color"`
	BatteryVariant string    `json:"battery_variant"`
	Price          int64     `json:"price"`
}

func newVariantResponse(variant models.VehicleVariant) variantResponse {
	return variantResponse{
		VariantID:      variant.ID,
		ModelCode:      variant.ModelCode,
		Color:          variant.Color,
		BatteryVariant: variant.BatteryVariant,
		Price:          variant.Price,
	}
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/voltara/prebooking-backend/pkg/db/models"
	"github.com/voltara/prebooking-backend/pkg/errors"
)

// Service resolves vehicle variants and their authoritative prices.
type Service interface {
	GetVariant(ctx context.Context, modelCode, color, batteryVariant string) (*models.VehicleVariant, error)
	GetPrice(ctx context.Context, modelCode, color, batteryVariant string) (int64, error)
	ListActive(ctx context.Context) ([]models.VehicleVariant, error)
}

type service struct {
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetVariant(ctx context.Context, modelCode, color, batteryVariant string) (*models.VehicleVariant, error) {
	modelCode = strings.TrimSpace(modelCode)
	color = strings.TrimSpace(color)
	batteryVariant = strings.TrimSpace(batteryVariant)
	if modelCode == "" || color == "" || batteryVariant == "" {
		return nil, errors.New(errors.CodeValidation, "model code, color and battery variant are required")
	}

	variant, err := s.repo.FindVariant(ctx, modelCode, color, batteryVariant)
	if err != nil {
		return nil, err
	}
	if variant == nil || !variant.Active {
		return nil, errors.New(errors.CodeNotFound, "vehicle configuration not available").
			WithDetails(map[string]any{"model_code": modelCode, "color": color, "battery_variant": batteryVariant})
	}
	return variant, nil
}

func (s *service) GetPrice(ctx context.Context, modelCode, color, batteryVariant string) (int64, error) {
	variant, err := s.GetVariant(ctx, modelCode, color, batteryVariant)
	if err != nil {
		return 0, err
	}
	return variant.Price, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.VehicleVariant, error) {
	return s.repo.ListActive(ctx)
}

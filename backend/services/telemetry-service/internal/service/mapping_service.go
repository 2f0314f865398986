package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/repository"
)

// MappingStore persists vehicle to meter pairs.
type MappingStore interface {
	UpsertMapping(ctx context.Context, m models.DeviceMapping) error
	GetMapping(ctx context.Context, vehicleID string) (*models.DeviceMapping, error)
}

// MappingService registers and resolves device mappings.
type MappingService struct {
	store  MappingStore
	logger *zap.Logger
}

// NewMappingService returns service.
func NewMappingService(store MappingStore, logger *zap.Logger) *MappingService {
	return &MappingService{store: store, logger: logger}
}

// RegisterMapping inserts or replaces the meter for a vehicle. The meter is not
// required to have reported yet.
func (s *MappingService) RegisterMapping(ctx context.Context, m models.DeviceMapping) error {
	if err := s.store.UpsertMapping(ctx, m); err != nil {
		return fmt.Errorf("upsert mapping %s: %w", m.VehicleID, err)
	}
	s.logger.Info("mapping registered", zap.String("vehicle_id", m.VehicleID), zap.String("meter_id", m.MeterID))
	return nil
}

// Resolve returns the meter mapped to a vehicle.
func (s *MappingService) Resolve(ctx context.Context, vehicleID string) (*models.DeviceMapping, error) {
	return resolveMapping(ctx, s.store, vehicleID)
}

func resolveMapping(ctx context.Context, store MappingStore, vehicleID string) (*models.DeviceMapping, error) {
	m, err := store.GetMapping(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("resolve mapping %s: %w", vehicleID, err)
	}
	return m, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/repository"
)

// LatestReader reads the durable latest-state rows.
type LatestReader interface {
	LatestVehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error)
	LatestMeter(ctx context.Context, meterID string) (*models.MeterLatest, error)
}

// LatestService serves latest device state, preferring the mirror when present.
type LatestService struct {
	store  LatestReader
	mirror LatestMirror
	logger *zap.Logger
}

// NewLatestService returns service. mirror may be nil.
func NewLatestService(store LatestReader, mirror LatestMirror, logger *zap.Logger) *LatestService {
	return &LatestService{store: store, mirror: mirror, logger: logger}
}

// Vehicle returns the latest state of a vehicle.
func (s *LatestService) Vehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error) {
	if s.mirror != nil {
		latest, err := s.mirror.Vehicle(ctx, vehicleID)
		if err == nil {
			return latest, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("latest mirror read failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
		}
	}

	latest, err := s.store.LatestVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrLatestNotFound) {
			return nil, ErrLatestNotFound
		}
		return nil, fmt.Errorf("latest vehicle %s: %w", vehicleID, err)
	}
	return latest, nil
}

// Meter returns the latest state of a meter.
func (s *LatestService) Meter(ctx context.Context, meterID string) (*models.MeterLatest, error) {
	if s.mirror != nil {
		latest, err := s.mirror.Meter(ctx, meterID)
		if err == nil {
			return latest, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("latest mirror read failed", zap.String("meter_id", meterID), zap.Error(err))
		}
	}

	latest, err := s.store.LatestMeter(ctx, meterID)
	if err != nil {
		if errors.Is(err, repository.ErrLatestNotFound) {
			return nil, ErrLatestNotFound
		}
		return nil, fmt.Errorf("latest meter %s: %w", meterID, err)
	}
	return latest, nil
}

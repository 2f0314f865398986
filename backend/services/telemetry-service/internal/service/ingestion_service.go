package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// IngestionStore appends a sample to history and reconciles the latest row in one
// unit of work. applied is false when the stored latest row was as new or newer.
type IngestionStore interface {
	RecordVehicle(ctx context.Context, sample *models.VehicleSample) (applied bool, err error)
	RecordMeter(ctx context.Context, sample *models.MeterSample) (applied bool, err error)
}

// LatestMirror is an out-of-process copy of the latest-state tables.
type LatestMirror interface {
	MirrorVehicle(ctx context.Context, latest models.VehicleLatest) error
	MirrorMeter(ctx context.Context, latest models.MeterLatest) error
	Vehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error)
	Meter(ctx context.Context, meterID string) (*models.MeterLatest, error)
	Evict(ctx context.Context, kind models.DeviceKind, deviceID string) error
}

// IngestionService records telemetry samples.
type IngestionService struct {
	store    IngestionStore
	mirror   LatestMirror
	recorder Recorder
	logger   *zap.Logger
}

// NewIngestionService builds the service. mirror and recorder may be nil.
func NewIngestionService(store IngestionStore, mirror LatestMirror, recorder Recorder, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		store:    store,
		mirror:   mirror,
		recorder: recorderOrNop(recorder),
		logger:   logger,
	}
}

// IngestVehicle persists a vehicle sample. Stale samples still land in history.
func (s *IngestionService) IngestVehicle(ctx context.Context, sample *models.VehicleSample) error {
	applied, err := s.store.RecordVehicle(ctx, sample)
	if err != nil {
		s.recorder.IngestFailed(models.KindVehicle)
		return fmt.Errorf("ingest vehicle %s: %w", sample.VehicleID, err)
	}
	s.recorder.SampleIngested(models.KindVehicle, applied)

	if applied && s.mirror != nil {
		if err := s.mirror.MirrorVehicle(ctx, sample.Latest()); err != nil {
			s.logger.Warn("failed to mirror vehicle latest", zap.String("vehicle_id", sample.VehicleID), zap.Error(err))
			s.evict(models.KindVehicle, sample.VehicleID)
		}
	}
	return nil
}

// IngestMeter persists a meter sample.
func (s *IngestionService) IngestMeter(ctx context.Context, sample *models.MeterSample) error {
	applied, err := s.store.RecordMeter(ctx, sample)
	if err != nil {
		s.recorder.IngestFailed(models.KindMeter)
		return fmt.Errorf("ingest meter %s: %w", sample.MeterID, err)
	}
	s.recorder.SampleIngested(models.KindMeter, applied)

	if applied && s.mirror != nil {
		if err := s.mirror.MirrorMeter(ctx, sample.Latest()); err != nil {
			s.logger.Warn("failed to mirror meter latest", zap.String("meter_id", sample.MeterID), zap.Error(err))
			s.evict(models.KindMeter, sample.MeterID)
		}
	}
	return nil
}

const evictTimeout = 2 * time.Second

// evict drops a mirror entry that may now be older than the stored latest row, so
// reads fall back to the store. It does not inherit the request deadline.
func (s *IngestionService) evict(kind models.DeviceKind, deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), evictTimeout)
	defer cancel()
	if err := s.mirror.Evict(ctx, kind, deviceID); err != nil {
		s.logger.Error("failed to evict stale mirror entry",
			zap.String("kind", string(kind)),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	libdb "evtelemetry/backend/libs/db"
	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// PostgresStore groups the repositories behind the service-facing store contracts.
// Ingestion runs history insert and latest reconciliation in one transaction.
type PostgresStore struct {
	db       *sql.DB
	history  *HistoryRepository
	latest   *LatestRepository
	mappings *MappingRepository
}

// NewPostgresStore returns store bound to the pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:       db,
		history:  NewHistoryRepository(db),
		latest:   NewLatestRepository(db),
		mappings: NewMappingRepository(db),
	}
}

// RecordVehicle appends the sample to history and reconciles the latest row.
// applied reports whether the latest row was replaced.
func (s *PostgresStore) RecordVehicle(ctx context.Context, sample *models.VehicleSample) (applied bool, err error) {
	err = libdb.RunInTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := NewHistoryRepository(tx).InsertVehicle(ctx, sample); err != nil {
			return fmt.Errorf("insert vehicle history: %w", err)
		}
		ok, err := NewLatestRepository(tx).UpsertVehicleIfNewer(ctx, sample.Latest())
		if err != nil {
			return fmt.Errorf("reconcile vehicle latest: %w", err)
		}
		applied = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// RecordMeter appends the sample to history and reconciles the latest row.
func (s *PostgresStore) RecordMeter(ctx context.Context, sample *models.MeterSample) (applied bool, err error) {
	err = libdb.RunInTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := NewHistoryRepository(tx).InsertMeter(ctx, sample); err != nil {
			return fmt.Errorf("insert meter history: %w", err)
		}
		ok, err := NewLatestRepository(tx).UpsertMeterIfNewer(ctx, sample.Latest())
		if err != nil {
			return fmt.Errorf("reconcile meter latest: %w", err)
		}
		applied = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// UpsertMapping stores the vehicle to meter pair.
func (s *PostgresStore) UpsertMapping(ctx context.Context, m models.DeviceMapping) error {
	return s.mappings.Upsert(ctx, m)
}

// GetMapping returns the pair for a vehicle or ErrMappingNotFound.
func (s *PostgresStore) GetMapping(ctx context.Context, vehicleID string) (*models.DeviceMapping, error) {
	return s.mappings.Get(ctx, vehicleID)
}

func (s *PostgresStore) VehicleBoundary(ctx context.Context, vehicleID string, w models.Window, edge models.Edge) (*models.VehicleSample, error) {
	return s.history.VehicleBoundary(ctx, vehicleID, w, edge)
}

func (s *PostgresStore) MeterBoundary(ctx context.Context, meterID string, w models.Window, edge models.Edge) (*models.MeterSample, error) {
	return s.history.MeterBoundary(ctx, meterID, w, edge)
}

func (s *PostgresStore) AverageBatteryTemp(ctx context.Context, vehicleID string, w models.Window) (float64, bool, error) {
	return s.history.AverageBatteryTemp(ctx, vehicleID, w)
}

// LatestVehicle returns the latest vehicle row or ErrLatestNotFound.
func (s *PostgresStore) LatestVehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error) {
	return s.latest.GetVehicle(ctx, vehicleID)
}

// LatestMeter returns the latest meter row or ErrLatestNotFound.
func (s *PostgresStore) LatestMeter(ctx context.Context, meterID string) (*models.MeterLatest, error) {
	return s.latest.GetMeter(ctx, meterID)
}

// Ping checks database connectivity. It never touches the latest-state tables.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return libdb.Ping(ctx, s.db)
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// MappingRepository stores vehicle to meter pairs.
type MappingRepository struct {
	db DBTX
}

// NewMappingRepository returns repository.
func NewMappingRepository(db DBTX) *MappingRepository {
	return &MappingRepository{db: db}
}

// Upsert inserts or replaces the mapping keyed by vehicle id.
func (r *MappingRepository) Upsert(ctx context.Context, m models.DeviceMapping) error {
	const query = `
		INSERT INTO vehicle_meter_mapping (vehicle_id, meter_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (vehicle_id) DO UPDATE SET
			meter_id = EXCLUDED.meter_id,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, m.VehicleID, m.MeterID)
	return err
}

// Get returns the mapping for a vehicle.
func (r *MappingRepository) Get(ctx context.Context, vehicleID string) (*models.DeviceMapping, error) {
	const query = `
		SELECT vehicle_id, meter_id
		FROM vehicle_meter_mapping
		WHERE vehicle_id = $1
	`
	var m models.DeviceMapping
	if err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(&m.VehicleID, &m.MeterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, err
	}
	return &m, nil
}

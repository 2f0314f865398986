package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// HistoryRepository appends and reads immutable telemetry samples.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository returns repository.
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// InsertVehicle appends a vehicle sample and fills its surrogate id.
func (r *HistoryRepository) InsertVehicle(ctx context.Context, s *models.VehicleSample) error {
	const query = `
		INSERT INTO vehicle_telemetry (vehicle_id, soc, kwh_delivered_dc, battery_temp, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		s.VehicleID,
		s.SoC,
		s.KWhDeliveredDC,
		s.BatteryTemp,
		s.Timestamp,
	).Scan(&s.ID)
}

// InsertMeter appends a meter sample and fills its surrogate id.
func (r *HistoryRepository) InsertMeter(ctx context.Context, s *models.MeterSample) error {
	const query = `
		INSERT INTO meter_telemetry (meter_id, kwh_consumed_ac, voltage, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		s.MeterID,
		s.KWhConsumedAC,
		s.Voltage,
		s.Timestamp,
	).Scan(&s.ID)
}

// VehicleBoundary returns the earliest or latest vehicle sample inside the window,
// or nil when the window holds none.
func (r *HistoryRepository) VehicleBoundary(ctx context.Context, vehicleID string, w models.Window, edge models.Edge) (*models.VehicleSample, error) {
	query := fmt.Sprintf(`
		SELECT id, vehicle_id, soc, kwh_delivered_dc, battery_temp, recorded_at
		FROM vehicle_telemetry
		WHERE vehicle_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at %[1]s, id %[1]s
		LIMIT 1
	`, edge.SQLOrder())

	var s models.VehicleSample
	err := r.db.QueryRowContext(ctx, query, vehicleID, w.Start, w.End).Scan(
		&s.ID,
		&s.VehicleID,
		&s.SoC,
		&s.KWhDeliveredDC,
		&s.BatteryTemp,
		&s.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Timestamp = s.Timestamp.UTC()
	return &s, nil
}

// MeterBoundary returns the earliest or latest meter sample inside the window,
// or nil when the window holds none.
func (r *HistoryRepository) MeterBoundary(ctx context.Context, meterID string, w models.Window, edge models.Edge) (*models.MeterSample, error) {
	query := fmt.Sprintf(`
		SELECT id, meter_id, kwh_consumed_ac, voltage, recorded_at
		FROM meter_telemetry
		WHERE meter_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at %[1]s, id %[1]s
		LIMIT 1
	`, edge.SQLOrder())

	var s models.MeterSample
	err := r.db.QueryRowContext(ctx, query, meterID, w.Start, w.End).Scan(
		&s.ID,
		&s.MeterID,
		&s.KWhConsumedAC,
		&s.Voltage,
		&s.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Timestamp = s.Timestamp.UTC()
	return &s, nil
}

// AverageBatteryTemp returns the mean battery temperature inside the window.
// ok is false when the window holds no vehicle samples.
func (r *HistoryRepository) AverageBatteryTemp(ctx context.Context, vehicleID string, w models.Window) (avg float64, ok bool, err error) {
	const query = `
		SELECT AVG(battery_temp)
		FROM vehicle_telemetry
		WHERE vehicle_id = $1 AND recorded_at >= $2 AND recorded_at < $3
	`
	var result sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, vehicleID, w.Start, w.End).Scan(&result); err != nil {
		return 0, false, err
	}
	return result.Float64, result.Valid, nil
}

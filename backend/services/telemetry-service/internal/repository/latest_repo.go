package repository

import (
	"context"
	"database/sql"
	"errors"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// LatestRepository maintains the single-row-per-device latest projection.
type LatestRepository struct {
	db DBTX
}

// NewLatestRepository returns repository.
func NewLatestRepository(db DBTX) *LatestRepository {
	return &LatestRepository{db: db}
}

// UpsertVehicleIfNewer writes the row unless the stored one has an equal or greater
// timestamp. The comparison and the write are one statement, so racing writers for the
// same vehicle serialize on the row lock and converge on the greatest timestamp.
func (r *LatestRepository) UpsertVehicleIfNewer(ctx context.Context, l models.VehicleLatest) (bool, error) {
	const query = `
		INSERT INTO vehicles_latest (vehicle_id, soc, kwh_delivered_dc, battery_temp, recorded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (vehicle_id) DO UPDATE SET
			soc = EXCLUDED.soc,
			kwh_delivered_dc = EXCLUDED.kwh_delivered_dc,
			battery_temp = EXCLUDED.battery_temp,
			recorded_at = EXCLUDED.recorded_at,
			updated_at = NOW()
		WHERE vehicles_latest.recorded_at < EXCLUDED.recorded_at
	`
	result, err := r.db.ExecContext(ctx, query, l.VehicleID, l.SoC, l.KWhDeliveredDC, l.BatteryTemp, l.Timestamp)
	if err != nil {
		return false, err
	}
	return applied(result)
}

// UpsertMeterIfNewer is the meter counterpart of UpsertVehicleIfNewer.
func (r *LatestRepository) UpsertMeterIfNewer(ctx context.Context, l models.MeterLatest) (bool, error) {
	const query = `
		INSERT INTO meters_latest (meter_id, kwh_consumed_ac, voltage, recorded_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (meter_id) DO UPDATE SET
			kwh_consumed_ac = EXCLUDED.kwh_consumed_ac,
			voltage = EXCLUDED.voltage,
			recorded_at = EXCLUDED.recorded_at,
			updated_at = NOW()
		WHERE meters_latest.recorded_at < EXCLUDED.recorded_at
	`
	result, err := r.db.ExecContext(ctx, query, l.MeterID, l.KWhConsumedAC, l.Voltage, l.Timestamp)
	if err != nil {
		return false, err
	}
	return applied(result)
}

// GetVehicle returns the latest row for a vehicle.
func (r *LatestRepository) GetVehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error) {
	const query = `
		SELECT vehicle_id, soc, kwh_delivered_dc, battery_temp, recorded_at
		FROM vehicles_latest
		WHERE vehicle_id = $1
	`
	var l models.VehicleLatest
	err := r.db.QueryRowContext(ctx, query, vehicleID).Scan(&l.VehicleID, &l.SoC, &l.KWhDeliveredDC, &l.BatteryTemp, &l.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLatestNotFound
		}
		return nil, err
	}
	l.Timestamp = l.Timestamp.UTC()
	return &l, nil
}

// GetMeter returns the latest row for a meter.
func (r *LatestRepository) GetMeter(ctx context.Context, meterID string) (*models.MeterLatest, error) {
	const query = `
		SELECT meter_id, kwh_consumed_ac, voltage, recorded_at
		FROM meters_latest
		WHERE meter_id = $1
	`
	var l models.MeterLatest
	err := r.db.QueryRowContext(ctx, query, meterID).Scan(&l.MeterID, &l.KWhConsumedAC, &l.Voltage, &l.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLatestNotFound
		}
		return nil, err
	}
	l.Timestamp = l.Timestamp.UTC()
	return &l, nil
}

func applied(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the idempotent DDL for the telemetry tables.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vehicle_telemetry (
		id               BIGSERIAL PRIMARY KEY,
		vehicle_id       TEXT NOT NULL,
		soc              DOUBLE PRECISION NOT NULL,
		kwh_delivered_dc DOUBLE PRECISION NOT NULL,
		battery_temp     DOUBLE PRECISION NOT NULL,
		recorded_at      TIMESTAMPTZ(3) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicle_telemetry_vehicle_recorded
		ON vehicle_telemetry (vehicle_id, recorded_at)`,

	`CREATE TABLE IF NOT EXISTS meter_telemetry (
		id              BIGSERIAL PRIMARY KEY,
		meter_id        TEXT NOT NULL,
		kwh_consumed_ac DOUBLE PRECISION NOT NULL,
		voltage         DOUBLE PRECISION NOT NULL,
		recorded_at     TIMESTAMPTZ(3) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meter_telemetry_meter_recorded
		ON meter_telemetry (meter_id, recorded_at)`,

	`CREATE TABLE IF NOT EXISTS vehicles_latest (
		vehicle_id       TEXT PRIMARY KEY,
		soc              DOUBLE PRECISION NOT NULL,
		kwh_delivered_dc DOUBLE PRECISION NOT NULL,
		battery_temp     DOUBLE PRECISION NOT NULL,
		recorded_at      TIMESTAMPTZ(3) NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS meters_latest (
		meter_id        TEXT PRIMARY KEY,
		kwh_consumed_ac DOUBLE PRECISION NOT NULL,
		voltage         DOUBLE PRECISION NOT NULL,
		recorded_at     TIMESTAMPTZ(3) NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS vehicle_meter_mapping (
		vehicle_id TEXT PRIMARY KEY,
		meter_id   TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates missing tables and indexes. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: schema statement %d: %w", i, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresStore(sqlDB), mock
}

func vehicleSample(ts time.Time) *models.VehicleSample {
	return &models.VehicleSample{
		VehicleID:      "V-1",
		SoC:            55.5,
		KWhDeliveredDC: 100,
		BatteryTemp:    31.2,
		Timestamp:      ts,
	}
}

func TestPostgresStoreRecordVehicle(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("commits history and applied latest in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		sample := vehicleSample(ts)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vehicle_telemetry")).
			WithArgs("V-1", 55.5, 100.0, 31.2, ts).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vehicles_latest")).
			WithArgs("V-1", 55.5, 100.0, 31.2, ts).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		applied, err := store.RecordVehicle(context.Background(), sample)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, int64(7), sample.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale sample still commits history", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vehicle_telemetry")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
		mock.ExpectExec(regexp.QuoteMeta("WHERE vehicles_latest.recorded_at < EXCLUDED.recorded_at")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		applied, err := store.RecordVehicle(context.Background(), vehicleSample(ts))

		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("latest failure rolls back history", func(t *testing.T) {
		store, mock := newMockStore(t)
		dbErr := errors.New("deadlock detected")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vehicle_telemetry")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vehicles_latest")).
			WillReturnError(dbErr)
		mock.ExpectRollback()

		applied, err := store.RecordVehicle(context.Background(), vehicleSample(ts))

		require.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "reconcile vehicle latest")
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("history failure skips reconciliation", func(t *testing.T) {
		store, mock := newMockStore(t)
		dbErr := errors.New("connection refused")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vehicle_telemetry")).
			WillReturnError(dbErr)
		mock.ExpectRollback()

		_, err := store.RecordVehicle(context.Background(), vehicleSample(ts))

		require.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "insert vehicle history")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStoreRecordMeter(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sample := &models.MeterSample{MeterID: "M-1", KWhConsumedAC: 212.5, Voltage: 230, Timestamp: ts}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO meter_telemetry")).
		WithArgs("M-1", 212.5, 230.0, ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meters_latest")).
		WithArgs("M-1", 212.5, 230.0, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := store.RecordMeter(context.Background(), sample)

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(3), sample.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingRepository(t *testing.T) {
	t.Run("upsert replaces by vehicle id", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (vehicle_id) DO UPDATE")).
			WithArgs("V-1", "M-2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.UpsertMapping(context.Background(), models.DeviceMapping{VehicleID: "V-1", MeterID: "M-2"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing mapping", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vehicle_meter_mapping")).
			WithArgs("V-unknown").
			WillReturnRows(sqlmock.NewRows([]string{"vehicle_id", "meter_id"}))

		_, err := store.GetMapping(context.Background(), "V-unknown")
		require.ErrorIs(t, err, ErrMappingNotFound)
	})

	t.Run("storage failure is not masked as not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vehicle_meter_mapping")).
			WillReturnError(sql.ErrConnDone)

		_, err := store.GetMapping(context.Background(), "V-1")
		require.ErrorIs(t, err, sql.ErrConnDone)
		assert.NotErrorIs(t, err, ErrMappingNotFound)
	})
}

func TestHistoryRepositoryBoundaries(t *testing.T) {
	end := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	w := models.Window{Start: end.Add(-24 * time.Hour), End: end}

	t.Run("latest edge orders descending", func(t *testing.T) {
		store, mock := newMockStore(t)
		ts := end.Add(-time.Hour)
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY recorded_at DESC, id DESC")).
			WithArgs("V-1", w.Start, w.End).
			WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "soc", "kwh_delivered_dc", "battery_temp", "recorded_at"}).
				AddRow(int64(4), "V-1", 80.0, 110.0, 35.0, ts))

		sample, err := store.VehicleBoundary(context.Background(), "V-1", w, models.EdgeLatest)

		require.NoError(t, err)
		require.NotNil(t, sample)
		assert.Equal(t, 110.0, sample.KWhDeliveredDC)
		assert.Equal(t, ts, sample.Timestamp)
	})

	t.Run("empty window returns nil without error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY recorded_at ASC, id ASC")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "meter_id", "kwh_consumed_ac", "voltage", "recorded_at"}))

		sample, err := store.MeterBoundary(context.Background(), "M-1", w, models.EdgeEarliest)

		require.NoError(t, err)
		assert.Nil(t, sample)
	})

	t.Run("average over empty window is undefined", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(battery_temp)")).
			WithArgs("V-1", w.Start, w.End).
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(nil))

		_, ok, err := store.AverageBatteryTemp(context.Background(), "V-1", w)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("average value", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(battery_temp)")).
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(32.5))

		avg, ok, err := store.AverageBatteryTemp(context.Background(), "V-1", w)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.InDelta(t, 32.5, avg, 1e-9)
	})
}

func TestLatestRepositoryGet(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM meters_latest")).
		WithArgs("M-9").
		WillReturnRows(sqlmock.NewRows([]string{"meter_id", "kwh_consumed_ac", "voltage", "recorded_at"}))

	_, err := store.LatestMeter(context.Background(), "M-9")
	require.ErrorIs(t, err, ErrLatestNotFound)
}

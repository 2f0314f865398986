package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/repository"
)

func TestIngestVehicleMirrorsOnlyAppliedSamples(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	sample := &models.VehicleSample{VehicleID: "V-1", SoC: 50, Timestamp: ts}

	t.Run("applied", func(t *testing.T) {
		store := &fakeStore{applied: true}
		mirror := newFakeMirror()
		rec := newCountingRecorder()

		require.NoError(t, NewIngestionService(store, mirror, rec, zap.NewNop()).IngestVehicle(context.Background(), sample))

		assert.Equal(t, sample.Latest(), mirror.vehicles["V-1"])
		assert.Equal(t, 1, rec.ingested["vehicle/applied"])
	})

	t.Run("stale", func(t *testing.T) {
		store := &fakeStore{applied: false}
		mirror := newFakeMirror()
		rec := newCountingRecorder()

		require.NoError(t, NewIngestionService(store, mirror, rec, zap.NewNop()).IngestVehicle(context.Background(), sample))

		assert.Empty(t, mirror.vehicles)
		assert.Equal(t, 1, store.recorded)
		assert.Equal(t, 1, rec.ingested["vehicle/stale"])
	})
}

func TestIngestMirrorFailureIsNotSurfaced(t *testing.T) {
	store := &fakeStore{applied: true}
	mirror := newFakeMirror()
	mirror.err = errStorage

	err := NewIngestionService(store, mirror, nil, zap.NewNop()).
		IngestMeter(context.Background(), &models.MeterSample{MeterID: "M-1", Timestamp: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, []string{"meter/M-1"}, mirror.evicted)
}

func TestIngestEvictFailureIsNotSurfaced(t *testing.T) {
	store := &fakeStore{applied: true}
	mirror := newFakeMirror()
	mirror.writeErr = errStorage
	mirror.evictErr = errStorage

	err := NewIngestionService(store, mirror, nil, zap.NewNop()).
		IngestVehicle(context.Background(), &models.VehicleSample{VehicleID: "V-1", Timestamp: time.Now()})

	require.NoError(t, err)
	assert.Empty(t, mirror.evicted)
}

func TestIngestStorageFailure(t *testing.T) {
	store := &fakeStore{recordErr: errStorage}
	rec := newCountingRecorder()
	svc := NewIngestionService(store, nil, rec, zap.NewNop())

	err := svc.IngestMeter(context.Background(), &models.MeterSample{MeterID: "M-7"})
	require.ErrorIs(t, err, errStorage)
	assert.Contains(t, err.Error(), "M-7")

	err = svc.IngestVehicle(context.Background(), &models.VehicleSample{VehicleID: "V-7"})
	require.ErrorIs(t, err, errStorage)

	assert.Equal(t, 1, rec.failed[models.KindMeter])
	assert.Equal(t, 1, rec.failed[models.KindVehicle])
}

func TestIngestionAgainstMemoryStore(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewIngestionService(store, nil, nil, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.IngestVehicle(ctx, &models.VehicleSample{VehicleID: "V-1", SoC: 90, Timestamp: base.Add(time.Hour)}))
	require.NoError(t, svc.IngestVehicle(ctx, &models.VehicleSample{VehicleID: "V-1", SoC: 10, Timestamp: base}))

	latest, err := NewLatestService(store, nil, zap.NewNop()).Vehicle(ctx, "V-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, latest.SoC)
	assert.Equal(t, 2, store.VehicleHistoryLen("V-1"))
}

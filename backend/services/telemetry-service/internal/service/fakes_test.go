package service

import (
	"context"
	"errors"
	"sync"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/repository"
)

var errStorage = errors.New("storage unavailable")

type fakeStore struct {
	mu sync.Mutex

	mapping    *models.DeviceMapping
	mappingErr error

	vehicleStart, vehicleEnd *models.VehicleSample
	meterStart, meterEnd     *models.MeterSample
	avg                      float64
	avgOK                    bool
	historyErr               error

	historyCalls int
	meterIDs     []string
	windows      []models.Window

	applied   bool
	recordErr error
	recorded  int
}

func (f *fakeStore) GetMapping(_ context.Context, vehicleID string) (*models.DeviceMapping, error) {
	if f.mappingErr != nil {
		return nil, f.mappingErr
	}
	if f.mapping == nil {
		return nil, repository.ErrMappingNotFound
	}
	return f.mapping, nil
}

func (f *fakeStore) UpsertMapping(_ context.Context, m models.DeviceMapping) error {
	if f.mappingErr != nil {
		return f.mappingErr
	}
	f.mapping = &m
	return nil
}

func (f *fakeStore) track(meterID string, w models.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	f.windows = append(f.windows, w)
	if meterID != "" {
		f.meterIDs = append(f.meterIDs, meterID)
	}
}

func (f *fakeStore) VehicleBoundary(_ context.Context, _ string, w models.Window, edge models.Edge) (*models.VehicleSample, error) {
	f.track("", w)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if edge == models.EdgeLatest {
		return f.vehicleEnd, nil
	}
	return f.vehicleStart, nil
}

func (f *fakeStore) MeterBoundary(_ context.Context, meterID string, w models.Window, edge models.Edge) (*models.MeterSample, error) {
	f.track(meterID, w)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if edge == models.EdgeLatest {
		return f.meterEnd, nil
	}
	return f.meterStart, nil
}

func (f *fakeStore) AverageBatteryTemp(_ context.Context, _ string, w models.Window) (float64, bool, error) {
	f.track("", w)
	if f.historyErr != nil {
		return 0, false, f.historyErr
	}
	return f.avg, f.avgOK, nil
}

func (f *fakeStore) RecordVehicle(_ context.Context, sample *models.VehicleSample) (bool, error) {
	if f.recordErr != nil {
		return false, f.recordErr
	}
	f.recorded++
	return f.applied, nil
}

func (f *fakeStore) RecordMeter(_ context.Context, sample *models.MeterSample) (bool, error) {
	if f.recordErr != nil {
		return false, f.recordErr
	}
	f.recorded++
	return f.applied, nil
}

type fakeMirror struct {
	vehicles map[string]models.VehicleLatest
	meters   map[string]models.MeterLatest
	err      error
	writeErr error
	evictErr error
	evicted  []string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{vehicles: map[string]models.VehicleLatest{}, meters: map[string]models.MeterLatest{}}
}

func (m *fakeMirror) MirrorVehicle(_ context.Context, l models.VehicleLatest) error {
	if m.err != nil {
		return m.err
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.vehicles[l.VehicleID] = l
	return nil
}

func (m *fakeMirror) MirrorMeter(_ context.Context, l models.MeterLatest) error {
	if m.err != nil {
		return m.err
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.meters[l.MeterID] = l
	return nil
}

func (m *fakeMirror) Vehicle(_ context.Context, id string) (*models.VehicleLatest, error) {
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.vehicles[id]
	if !ok {
		return nil, errMirrorMiss
	}
	return &l, nil
}

func (m *fakeMirror) Meter(_ context.Context, id string) (*models.MeterLatest, error) {
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.meters[id]
	if !ok {
		return nil, errMirrorMiss
	}
	return &l, nil
}

func (m *fakeMirror) Evict(_ context.Context, kind models.DeviceKind, id string) error {
	if m.evictErr != nil {
		return m.evictErr
	}
	m.evicted = append(m.evicted, string(kind)+"/"+id)
	if kind == models.KindVehicle {
		delete(m.vehicles, id)
	} else {
		delete(m.meters, id)
	}
	return nil
}

var errMirrorMiss = errors.New("mirror miss")

type countingRecorder struct {
	mu       sync.Mutex
	ingested map[string]int
	failed   map[models.DeviceKind]int
	outcomes map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		ingested: map[string]int{},
		failed:   map[models.DeviceKind]int{},
		outcomes: map[string]int{},
	}
}

func (r *countingRecorder) SampleIngested(kind models.DeviceKind, applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(kind) + "/stale"
	if applied {
		key = string(kind) + "/applied"
	}
	r.ingested[key]++
}

func (r *countingRecorder) IngestFailed(kind models.DeviceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[kind]++
}

func (r *countingRecorder) SummaryServed(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

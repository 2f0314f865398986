package repository

import (
	"context"
	"sync"
	"sync/atomic"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

type vehicleCell struct {
	mu      sync.Mutex
	history []models.VehicleSample
	latest  *models.VehicleLatest
}

type meterCell struct {
	mu      sync.Mutex
	history []models.MeterSample
	latest  *models.MeterLatest
}

// MemoryStore keeps telemetry in process. Every device owns a cell with its own lock,
// so writers for different devices never contend.
type MemoryStore struct {
	nextID   atomic.Int64
	vehicles sync.Map // vehicle id -> *vehicleCell
	meters   sync.Map // meter id -> *meterCell

	mappingsMu sync.RWMutex
	mappings   map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mappings: make(map[string]string)}
}

func (s *MemoryStore) vehicleCell(id string) *vehicleCell {
	cell, _ := s.vehicles.LoadOrStore(id, &vehicleCell{})
	return cell.(*vehicleCell)
}

func (s *MemoryStore) meterCell(id string) *meterCell {
	cell, _ := s.meters.LoadOrStore(id, &meterCell{})
	return cell.(*meterCell)
}

// RecordVehicle appends the sample and replaces the latest row when strictly newer.
func (s *MemoryStore) RecordVehicle(ctx context.Context, sample *models.VehicleSample) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cell := s.vehicleCell(sample.VehicleID)
	cell.mu.Lock()
	defer cell.mu.Unlock()

	sample.ID = s.nextID.Add(1)
	cell.history = append(cell.history, *sample)

	if cell.latest != nil && !sample.Timestamp.After(cell.latest.Timestamp) {
		return false, nil
	}
	latest := sample.Latest()
	cell.latest = &latest
	return true, nil
}

// RecordMeter appends the sample and replaces the latest row when strictly newer.
func (s *MemoryStore) RecordMeter(ctx context.Context, sample *models.MeterSample) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	cell := s.meterCell(sample.MeterID)
	cell.mu.Lock()
	defer cell.mu.Unlock()

	sample.ID = s.nextID.Add(1)
	cell.history = append(cell.history, *sample)

	if cell.latest != nil && !sample.Timestamp.After(cell.latest.Timestamp) {
		return false, nil
	}
	latest := sample.Latest()
	cell.latest = &latest
	return true, nil
}

func (s *MemoryStore) UpsertMapping(ctx context.Context, m models.DeviceMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mappingsMu.Lock()
	defer s.mappingsMu.Unlock()
	s.mappings[m.VehicleID] = m.MeterID
	return nil
}

func (s *MemoryStore) GetMapping(ctx context.Context, vehicleID string) (*models.DeviceMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mappingsMu.RLock()
	defer s.mappingsMu.RUnlock()
	meterID, ok := s.mappings[vehicleID]
	if !ok {
		return nil, ErrMappingNotFound
	}
	return &models.DeviceMapping{VehicleID: vehicleID, MeterID: meterID}, nil
}

func (s *MemoryStore) VehicleBoundary(ctx context.Context, vehicleID string, w models.Window, edge models.Edge) (*models.VehicleSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell, ok := s.vehicles.Load(vehicleID)
	if !ok {
		return nil, nil
	}
	vc := cell.(*vehicleCell)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	var best *models.VehicleSample
	for i := range vc.history {
		candidate := &vc.history[i]
		if !w.Contains(candidate.Timestamp) {
			continue
		}
		if best == nil || beats(edge, candidate.Timestamp.UnixNano(), candidate.ID, best.Timestamp.UnixNano(), best.ID) {
			best = candidate
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *MemoryStore) MeterBoundary(ctx context.Context, meterID string, w models.Window, edge models.Edge) (*models.MeterSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell, ok := s.meters.Load(meterID)
	if !ok {
		return nil, nil
	}
	mc := cell.(*meterCell)
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var best *models.MeterSample
	for i := range mc.history {
		candidate := &mc.history[i]
		if !w.Contains(candidate.Timestamp) {
			continue
		}
		if best == nil || beats(edge, candidate.Timestamp.UnixNano(), candidate.ID, best.Timestamp.UnixNano(), best.ID) {
			best = candidate
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *MemoryStore) AverageBatteryTemp(ctx context.Context, vehicleID string, w models.Window) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	cell, ok := s.vehicles.Load(vehicleID)
	if !ok {
		return 0, false, nil
	}
	vc := cell.(*vehicleCell)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	var (
		sum   float64
		count int
	)
	for _, sample := range vc.history {
		if w.Contains(sample.Timestamp) {
			sum += sample.BatteryTemp
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float64(count), true, nil
}

func (s *MemoryStore) LatestVehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell, ok := s.vehicles.Load(vehicleID)
	if !ok {
		return nil, ErrLatestNotFound
	}
	vc := cell.(*vehicleCell)
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if vc.latest == nil {
		return nil, ErrLatestNotFound
	}
	out := *vc.latest
	return &out, nil
}

func (s *MemoryStore) LatestMeter(ctx context.Context, meterID string) (*models.MeterLatest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cell, ok := s.meters.Load(meterID)
	if !ok {
		return nil, ErrLatestNotFound
	}
	mc := cell.(*meterCell)
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.latest == nil {
		return nil, ErrLatestNotFound
	}
	out := *mc.latest
	return &out, nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// VehicleHistoryLen reports how many samples were stored for a vehicle.
func (s *MemoryStore) VehicleHistoryLen(vehicleID string) int {
	cell, ok := s.vehicles.Load(vehicleID)
	if !ok {
		return 0
	}
	vc := cell.(*vehicleCell)
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.history)
}

// beats orders samples for boundary selection; ties on timestamp fall back to the id,
// matching the SQL ORDER BY recorded_at, id.
func beats(edge models.Edge, ts, id, bestTS, bestID int64) bool {
	if edge == models.EdgeLatest {
		return ts > bestTS || (ts == bestTS && id > bestID)
	}
	return ts < bestTS || (ts == bestTS && id < bestID)
}

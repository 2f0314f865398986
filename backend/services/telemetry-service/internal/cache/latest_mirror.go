package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

const keyPrefix = "telemetry:latest"

// compareAndSet overwrites the hash only when the stored timestamp is older than the
// incoming one, so concurrent mirrors converge on the newest sample.
var compareAndSet = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'ts')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// LatestMirror keeps a Redis copy of the latest-state rows for fast reads.
type LatestMirror struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewLatestMirror returns redis-backed mirror. A zero ttl keeps entries forever.
func NewLatestMirror(client redis.Cmdable, ttl time.Duration) *LatestMirror {
	return &LatestMirror{client: client, ttl: ttl}
}

func key(kind models.DeviceKind, deviceID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, deviceID)
}

// MirrorVehicle stores the vehicle latest state unless a newer one is present.
func (m *LatestMirror) MirrorVehicle(ctx context.Context, latest models.VehicleLatest) error {
	return m.set(ctx, key(models.KindVehicle, latest.VehicleID), latest.Timestamp, latest)
}

// MirrorMeter stores the meter latest state unless a newer one is present.
func (m *LatestMirror) MirrorMeter(ctx context.Context, latest models.MeterLatest) error {
	return m.set(ctx, key(models.KindMeter, latest.MeterID), latest.Timestamp, latest)
}

// Vehicle returns the mirrored vehicle state or redis.Nil.
func (m *LatestMirror) Vehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error) {
	var latest models.VehicleLatest
	if err := m.get(ctx, key(models.KindVehicle, vehicleID), &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

// Meter returns the mirrored meter state or redis.Nil.
func (m *LatestMirror) Meter(ctx context.Context, meterID string) (*models.MeterLatest, error) {
	var latest models.MeterLatest
	if err := m.get(ctx, key(models.KindMeter, meterID), &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

// Evict removes the mirrored state of a device.
func (m *LatestMirror) Evict(ctx context.Context, kind models.DeviceKind, deviceID string) error {
	return m.client.Del(ctx, key(kind, deviceID)).Err()
}

func (m *LatestMirror) set(ctx context.Context, k string, ts time.Time, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return compareAndSet.Run(ctx, m.client, []string{k}, ts.UnixMilli(), data, m.ttl.Milliseconds()).Err()
}

func (m *LatestMirror) get(ctx context.Context, k string, dst interface{}) error {
	data, err := m.client.HGet(ctx, k, "data").Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dst)
}

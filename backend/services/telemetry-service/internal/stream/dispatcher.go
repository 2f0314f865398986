package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/payload"
)

// ErrInvalidFrame marks frames that can never succeed: malformed JSON, an unknown
// type or a payload failing validation. Consumers drop these instead of retrying.
var ErrInvalidFrame = errors.New("stream: invalid frame")

// Frame is the envelope shared by every streaming transport.
type Frame struct {
	ID      string            `json:"id,omitempty"`
	Type    models.DeviceKind `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

// Ack is written back on transports that support replies.
type Ack struct {
	ID     string            `json:"id,omitempty"`
	Type   models.DeviceKind `json:"type,omitempty"`
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
}

const (
	AckSuccess = "success"
	AckError   = "error"
)

// Ingestor is the write side the dispatcher feeds.
type Ingestor interface {
	IngestVehicle(ctx context.Context, sample *models.VehicleSample) error
	IngestMeter(ctx context.Context, sample *models.MeterSample) error
}

// HandlerFunc ingests the payload of one frame type.
type HandlerFunc func(ctx context.Context, raw json.RawMessage) error

// Dispatcher decodes frames and routes them by type.
type Dispatcher struct {
	handlers map[models.DeviceKind]HandlerFunc
	logger   *zap.Logger
}

// NewDispatcher registers the vehicle and meter handlers on top of ingestor.
func NewDispatcher(ingestor Ingestor, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[models.DeviceKind]HandlerFunc),
		logger:   logger,
	}
	d.Register(models.KindVehicle, func(ctx context.Context, raw json.RawMessage) error {
		var reading payload.VehicleReading
		if err := json.Unmarshal(raw, &reading); err != nil {
			return fmt.Errorf("%w: decode vehicle payload: %v", ErrInvalidFrame, err)
		}
		sample, err := reading.Sample()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return ingestor.IngestVehicle(ctx, sample)
	})
	d.Register(models.KindMeter, func(ctx context.Context, raw json.RawMessage) error {
		var reading payload.MeterReading
		if err := json.Unmarshal(raw, &reading); err != nil {
			return fmt.Errorf("%w: decode meter payload: %v", ErrInvalidFrame, err)
		}
		sample, err := reading.Sample()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		return ingestor.IngestMeter(ctx, sample)
	})
	return d
}

// Register attaches handler to a frame type.
func (d *Dispatcher) Register(kind models.DeviceKind, handler HandlerFunc) {
	d.handlers[kind] = handler
}

// Dispatch decodes and ingests one raw frame. The returned frame carries whatever
// envelope fields could be decoded, even on error.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	handler, ok := d.handlers[frame.Type]
	if !ok {
		return frame, fmt.Errorf("%w: unsupported type %q", ErrInvalidFrame, frame.Type)
	}
	if len(frame.Payload) == 0 {
		return frame, fmt.Errorf("%w: payload is required", ErrInvalidFrame)
	}
	return frame, handler(ctx, frame.Payload)
}

// Process dispatches a frame received from source and encodes the ack. Failures are
// reported in the ack rather than returned, so the connection stays open.
func (d *Dispatcher) Process(ctx context.Context, source string, raw []byte) ([]byte, error) {
	frame, err := d.Dispatch(ctx, raw)
	ack := Ack{ID: frame.ID, Type: frame.Type, Status: AckSuccess}
	if err != nil {
		ack.Status = AckError
		if errors.Is(err, ErrInvalidFrame) {
			ack.Error = err.Error()
			d.logger.Debug("rejected stream frame", zap.String("source", source), zap.Error(err))
		} else {
			ack.Error = "storage failure"
			d.logger.Error("stream ingestion failed", zap.String("source", source), zap.Error(err))
		}
	}
	return json.Marshal(ack)
}

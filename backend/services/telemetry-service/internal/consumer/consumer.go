package consumer

import (
	"context"

	"evtelemetry/backend/services/telemetry-service/internal/stream"
)

// Dispatcher ingests one raw stream frame.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) (stream.Frame, error)
}

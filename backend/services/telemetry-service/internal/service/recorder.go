package service

import "evtelemetry/backend/services/telemetry-service/internal/models"

// Summary outcomes reported to the Recorder.
const (
	OutcomeReady        = "ready"
	OutcomeInsufficient = "insufficient"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Recorder receives domain events for metrics.
type Recorder interface {
	SampleIngested(kind models.DeviceKind, applied bool)
	IngestFailed(kind models.DeviceKind)
	SummaryServed(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) SampleIngested(models.DeviceKind, bool) {}
func (nopRecorder) IngestFailed(models.DeviceKind)         {}
func (nopRecorder) SummaryServed(string)                   {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

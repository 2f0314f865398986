package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/payload"
)

// Ingestor is the write side behind the ingestion endpoints.
type Ingestor interface {
	IngestVehicle(ctx context.Context, sample *models.VehicleSample) error
	IngestMeter(ctx context.Context, sample *models.MeterSample) error
}

// NewVehicleIngestionHandler handles POST /v1/ingestion/vehicle.
func NewVehicleIngestionHandler(ingestor Ingestor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reading payload.VehicleReading
		if err := decodeJSON(w, r, &reading); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sample, err := reading.Sample()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := ingestor.IngestVehicle(r.Context(), sample); err != nil {
			logger.Error("vehicle ingestion failed", zap.String("vehicle_id", sample.VehicleID), zap.Error(err))
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, success)
	}
}

// NewMeterIngestionHandler handles POST /v1/ingestion/meter.
func NewMeterIngestionHandler(ingestor Ingestor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reading payload.MeterReading
		if err := decodeJSON(w, r, &reading); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sample, err := reading.Sample()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := ingestor.IngestMeter(r.Context(), sample); err != nil {
			logger.Error("meter ingestion failed", zap.String("meter_id", sample.MeterID), zap.Error(err))
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, success)
	}
}

func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "storage timed out")
		return
	}
	writeError(w, http.StatusInternalServerError, "storage failure")
}

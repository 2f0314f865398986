package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/service"
)

// LatestReader serves latest device state.
type LatestReader interface {
	Vehicle(ctx context.Context, vehicleID string) (*models.VehicleLatest, error)
	Meter(ctx context.Context, meterID string) (*models.MeterLatest, error)
}

// NewVehicleLatestHandler handles GET /v1/vehicles/{vehicleId}/latest.
func NewVehicleLatestHandler(latest LatestReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := mux.Vars(r)["vehicleId"]
		state, err := latest.Vehicle(r.Context(), vehicleID)
		if err != nil {
			writeLatestError(w, logger, vehicleID, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// NewMeterLatestHandler handles GET /v1/meters/{meterId}/latest.
func NewMeterLatestHandler(latest LatestReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meterID := mux.Vars(r)["meterId"]
		state, err := latest.Meter(r.Context(), meterID)
		if err != nil {
			writeLatestError(w, logger, meterID, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func writeLatestError(w http.ResponseWriter, logger *zap.Logger, deviceID string, err error) {
	if errors.Is(err, service.ErrLatestNotFound) {
		writeError(w, http.StatusNotFound, "no telemetry received from "+deviceID)
		return
	}
	logger.Error("latest lookup failed", zap.String("device_id", deviceID), zap.Error(err))
	writeStorageError(w, err)
}

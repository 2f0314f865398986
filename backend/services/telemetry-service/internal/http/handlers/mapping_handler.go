package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evtelemetry/backend/services/telemetry-service/internal/http/middleware"
	"evtelemetry/backend/services/telemetry-service/internal/models"
	"evtelemetry/backend/services/telemetry-service/internal/payload"
	"evtelemetry/backend/services/telemetry-service/internal/service"
)

// MappingService registers and resolves vehicle to meter pairs.
type MappingService interface {
	RegisterMapping(ctx context.Context, m models.DeviceMapping) error
	Resolve(ctx context.Context, vehicleID string) (*models.DeviceMapping, error)
}

// NewRegisterMappingHandler handles POST /v1/ingestion/mapping.
func NewRegisterMappingHandler(mappings MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req payload.MappingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		m, err := req.Mapping()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := mappings.RegisterMapping(r.Context(), m); err != nil {
			logger.Error("mapping registration failed", zap.String("vehicle_id", m.VehicleID), zap.Error(err))
			writeStorageError(w, err)
			return
		}

		fields := []zap.Field{
			zap.String("vehicle_id", m.VehicleID),
			zap.String("meter_id", m.MeterID),
			zap.String("request_id", middleware.RequestID(r.Context())),
		}
		if subject, ok := middleware.SubjectFromContext(r.Context()); ok {
			fields = append(fields, zap.String("registered_by", subject))
		}
		logger.Info("mapping registered", fields...)
		writeJSON(w, http.StatusCreated, success)
	}
}

// NewGetMappingHandler handles GET /v1/mappings/{vehicleId}.
func NewGetMappingHandler(mappings MappingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := mux.Vars(r)["vehicleId"]

		m, err := mappings.Resolve(r.Context(), vehicleID)
		if err != nil {
			if errors.Is(err, service.ErrMappingNotFound) {
				writeError(w, http.StatusNotFound, "no meter mapped to vehicle "+vehicleID)
				return
			}
			logger.Error("mapping lookup failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

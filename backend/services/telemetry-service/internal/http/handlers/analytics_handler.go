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

// Summarizer computes efficiency summaries.
type Summarizer interface {
	Summarize(ctx context.Context, vehicleID string) (models.SummaryResult, error)
}

// NewSummaryHandler handles GET /v1/analytics/{vehicleId}/summary. Insufficient data
// is a 200 with a null data field.
func NewSummaryHandler(analytics Summarizer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := mux.Vars(r)["vehicleId"]

		result, err := analytics.Summarize(r.Context(), vehicleID)
		if err != nil {
			if errors.Is(err, service.ErrMappingNotFound) {
				writeError(w, http.StatusNotFound, "no meter mapped to vehicle "+vehicleID)
				return
			}
			logger.Error("summary failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result.Body())
	}
}

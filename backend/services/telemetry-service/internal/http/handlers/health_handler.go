package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type indicator struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status string               `json:"status"`
	Info   map[string]indicator `json:"info,omitempty"`
	Error  map[string]indicator `json:"error,omitempty"`
}

// NewHealthHandler returns GET /health handler. Only connectivity is probed.
func NewHealthHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status: "error",
				Error:  map[string]indicator{"database": {Status: "down"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Info:   map[string]indicator{"database": {Status: "up"}},
		})
	}
}

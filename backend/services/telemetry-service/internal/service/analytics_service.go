package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// SummaryWindow is the trailing span covered by a summary.
const SummaryWindow = 24 * time.Hour

// HistoryReader answers windowed questions over the append-only history.
type HistoryReader interface {
	VehicleBoundary(ctx context.Context, vehicleID string, w models.Window, edge models.Edge) (*models.VehicleSample, error)
	MeterBoundary(ctx context.Context, meterID string, w models.Window, edge models.Edge) (*models.MeterSample, error)
	AverageBatteryTemp(ctx context.Context, vehicleID string, w models.Window) (avg float64, ok bool, err error)
}

// AnalyticsService computes charging efficiency summaries.
type AnalyticsService struct {
	mappings MappingStore
	history  HistoryReader
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService returns service. recorder may be nil.
func NewAnalyticsService(mappings MappingStore, history HistoryReader, recorder Recorder, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		mappings: mappings,
		history:  history,
		recorder: recorderOrNop(recorder),
		logger:   logger,
		now:      time.Now,
	}
}

// Summarize compares the vehicle and its mapped meter over the trailing window ending now.
// A missing mapping returns ErrMappingNotFound without touching history. Missing
// boundary samples are reported as an insufficient-data result, not an error.
func (s *AnalyticsService) Summarize(ctx context.Context, vehicleID string) (models.SummaryResult, error) {
	mapping, err := resolveMapping(ctx, s.mappings, vehicleID)
	if err != nil {
		if errors.Is(err, ErrMappingNotFound) {
			s.recorder.SummaryServed(OutcomeNotFound)
		} else {
			s.recorder.SummaryServed(OutcomeError)
		}
		return models.SummaryResult{}, err
	}

	end := s.now().UTC()
	window := models.Window{Start: end.Add(-SummaryWindow), End: end}

	var (
		vehicleStart, vehicleEnd *models.VehicleSample
		meterStart, meterEnd     *models.MeterSample
		avgTemp                  float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vehicleStart, err = s.history.VehicleBoundary(gctx, vehicleID, window, models.EdgeEarliest)
		return err
	})
	g.Go(func() (err error) {
		vehicleEnd, err = s.history.VehicleBoundary(gctx, vehicleID, window, models.EdgeLatest)
		return err
	})
	g.Go(func() (err error) {
		meterStart, err = s.history.MeterBoundary(gctx, mapping.MeterID, window, models.EdgeEarliest)
		return err
	})
	g.Go(func() (err error) {
		meterEnd, err = s.history.MeterBoundary(gctx, mapping.MeterID, window, models.EdgeLatest)
		return err
	})
	g.Go(func() error {
		// an empty window leaves avgTemp at zero
		avg, _, err := s.history.AverageBatteryTemp(gctx, vehicleID, window)
		avgTemp = avg
		return err
	})
	if err := g.Wait(); err != nil {
		s.recorder.SummaryServed(OutcomeError)
		return models.SummaryResult{}, fmt.Errorf("summarize vehicle %s: %w", vehicleID, err)
	}

	if vehicleStart == nil || vehicleEnd == nil || meterStart == nil || meterEnd == nil {
		s.recorder.SummaryServed(OutcomeInsufficient)
		return models.InsufficientData(), nil
	}

	summary := models.EfficiencySummary{
		VehicleID: vehicleID,
		MeterID:   mapping.MeterID,
		TimeRange: models.SummaryTimeRange,
		Metrics:   ComputeEfficiency(vehicleStart, vehicleEnd, meterStart, meterEnd, avgTemp),
		LatestSnapshot: models.LatestSnapshot{
			CurrentSoC:       vehicleEnd.SoC,
			BatteryTemp:      vehicleEnd.BatteryTemp,
			MeterVoltage:     meterEnd.Voltage,
			VehicleTimestamp: vehicleEnd.Timestamp,
			MeterTimestamp:   meterEnd.Timestamp,
		},
	}
	s.recorder.SummaryServed(OutcomeReady)
	return models.Ready(summary), nil
}

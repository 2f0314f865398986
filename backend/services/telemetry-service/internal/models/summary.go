package models

import "time"

// SummaryTimeRange is the only supported aggregation window label.
const SummaryTimeRange = "24h"

// InsufficientDataMessage is returned when any window boundary is missing.
const InsufficientDataMessage = "Insufficient data for 24h summary"

// Window is a half-open instant range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// EfficiencyMetrics holds the rounded derived values of a summary.
type EfficiencyMetrics struct {
	TotalEnergyConsumedAC  float64 `json:"totalEnergyConsumedAc"`
	TotalEnergyDeliveredDC float64 `json:"totalEnergyDeliveredDc"`
	EfficiencyRatio        float64 `json:"efficiencyRatio"`
	AvgBatteryTemp         float64 `json:"avgBatteryTemp"`
}

// LatestSnapshot describes the device state at the end of the window.
type LatestSnapshot struct {
	CurrentSoC       float64   `json:"currentSoc"`
	BatteryTemp      float64   `json:"batteryTemp"`
	MeterVoltage     float64   `json:"meterVoltage"`
	VehicleTimestamp time.Time `json:"vehicleTimestamp"`
	MeterTimestamp   time.Time `json:"meterTimestamp"`
}

// EfficiencySummary is the payload of a ready summary.
type EfficiencySummary struct {
	VehicleID      string            `json:"vehicleId"`
	MeterID        string            `json:"meterId"`
	TimeRange      string            `json:"timeRange"`
	Metrics        EfficiencyMetrics `json:"metrics"`
	LatestSnapshot LatestSnapshot    `json:"latestSnapshot"`
}

// SummaryStatus tags which shape a SummaryResult carries.
type SummaryStatus int

const (
	SummaryReady SummaryStatus = iota
	SummaryInsufficientData
)

func (s SummaryStatus) String() string {
	switch s {
	case SummaryReady:
		return "ready"
	case SummaryInsufficientData:
		return "insufficient"
	default:
		return "unknown"
	}
}

// SummaryResult is either a ready summary or an insufficient-data marker.
// Summary is nil unless Status is SummaryReady.
type SummaryResult struct {
	Status  SummaryStatus
	Summary *EfficiencySummary
}

// InsufficientData builds the insufficient-data variant.
func InsufficientData() SummaryResult {
	return SummaryResult{Status: SummaryInsufficientData}
}

// Ready builds the ready variant.
func Ready(summary EfficiencySummary) SummaryResult {
	return SummaryResult{Status: SummaryReady, Summary: &summary}
}

// InsufficientDataBody is the wire shape of the insufficient-data variant.
type InsufficientDataBody struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Body returns the value rendered to callers for this result.
func (r SummaryResult) Body() interface{} {
	if r.Status == SummaryReady && r.Summary != nil {
		return r.Summary
	}
	return InsufficientDataBody{Message: InsufficientDataMessage, Data: nil}
}

// Edge selects which boundary sample of a window to fetch.
type Edge int

const (
	EdgeEarliest Edge = iota
	EdgeLatest
)

// SQLOrder returns the ORDER BY direction that puts the wanted edge first.
func (e Edge) SQLOrder() string {
	if e == EdgeLatest {
		return "DESC"
	}
	return "ASC"
}

package payload

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// ErrInvalid marks every validation failure so transports can map it to a client error.
var ErrInvalid = errors.New("invalid payload")

// ValidationError lists the offending fields of a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

type checker struct {
	problems []string
}

func (c *checker) id(field, value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		c.problems = append(c.problems, field+" is required")
	case !utf8.ValidString(value) || strings.ContainsRune(value, 0):
		c.problems = append(c.problems, field+" must be valid UTF-8 without NUL characters")
	}
	return value
}

// zonelessLayouts are ISO-8601 forms without an offset; they are read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISO8601(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return ts, nil
	}
	for _, layout := range zonelessLayouts {
		if zoneless, zerr := time.ParseInLocation(layout, value, time.UTC); zerr == nil {
			return zoneless, nil
		}
	}
	return time.Time{}, err
}

func (c *checker) number(field string, value *float64) float64 {
	switch {
	case value == nil:
		c.problems = append(c.problems, field+" is required")
		return 0
	case math.IsNaN(*value) || math.IsInf(*value, 0):
		c.problems = append(c.problems, field+" must be a finite number")
		return 0
	}
	return *value
}

func (c *checker) timestamp(field, value string) time.Time {
	if strings.TrimSpace(value) == "" {
		c.problems = append(c.problems, field+" is required")
		return time.Time{}
	}
	ts, err := parseISO8601(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be an ISO-8601 timestamp", field))
		return time.Time{}
	}
	return NormalizeTimestamp(ts)
}

func (c *checker) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

// NormalizeTimestamp converts to UTC at millisecond precision, the resolution
// the history tables keep.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Millisecond)
}

// VehicleReading is the wire form of a vehicle sample.
type VehicleReading struct {
	VehicleID      string   `json:"vehicleId"`
	SoC            *float64 `json:"soc"`
	KWhDeliveredDC *float64 `json:"kwhDeliveredDc"`
	BatteryTemp    *float64 `json:"batteryTemp"`
	Timestamp      string   `json:"timestamp"`
}

// Sample validates the reading and converts it to a history sample.
func (r VehicleReading) Sample() (*models.VehicleSample, error) {
	var c checker
	sample := &models.VehicleSample{
		VehicleID:      c.id("vehicleId", r.VehicleID),
		SoC:            c.number("soc", r.SoC),
		KWhDeliveredDC: c.number("kwhDeliveredDc", r.KWhDeliveredDC),
		BatteryTemp:    c.number("batteryTemp", r.BatteryTemp),
		Timestamp:      c.timestamp("timestamp", r.Timestamp),
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return sample, nil
}

// MeterReading is the wire form of a meter sample.
type MeterReading struct {
	MeterID       string   `json:"meterId"`
	KWhConsumedAC *float64 `json:"kwhConsumedAc"`
	Voltage       *float64 `json:"voltage"`
	Timestamp     string   `json:"timestamp"`
}

// Sample validates the reading and converts it to a history sample.
func (r MeterReading) Sample() (*models.MeterSample, error) {
	var c checker
	sample := &models.MeterSample{
		MeterID:       c.id("meterId", r.MeterID),
		KWhConsumedAC: c.number("kwhConsumedAc", r.KWhConsumedAC),
		Voltage:       c.number("voltage", r.Voltage),
		Timestamp:     c.timestamp("timestamp", r.Timestamp),
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return sample, nil
}

// MappingRequest is the wire form of a mapping registration.
type MappingRequest struct {
	VehicleID string `json:"vehicleId"`
	MeterID   string `json:"meterId"`
}

// Mapping validates the request.
func (r MappingRequest) Mapping() (models.DeviceMapping, error) {
	var c checker
	m := models.DeviceMapping{
		VehicleID: c.id("vehicleId", r.VehicleID),
		MeterID:   c.id("meterId", r.MeterID),
	}
	return m, c.err()
}

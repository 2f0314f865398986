package models

import "time"

// DeviceKind distinguishes the two telemetry streams.
type DeviceKind string

const (
	KindVehicle DeviceKind = "vehicle"
	KindMeter   DeviceKind = "meter"
)

// VehicleSample is one immutable vehicle telemetry row.
type VehicleSample struct {
	ID             int64     `db:"id" json:"id,omitempty"`
	VehicleID      string    `db:"vehicle_id" json:"vehicleId"`
	SoC            float64   `db:"soc" json:"soc"`
	KWhDeliveredDC float64   `db:"kwh_delivered_dc" json:"kwhDeliveredDc"`
	BatteryTemp    float64   `db:"battery_temp" json:"batteryTemp"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// MeterSample is one immutable meter telemetry row.
type MeterSample struct {
	ID            int64     `db:"id" json:"id,omitempty"`
	MeterID       string    `db:"meter_id" json:"meterId"`
	KWhConsumedAC float64   `db:"kwh_consumed_ac" json:"kwhConsumedAc"`
	Voltage       float64   `db:"voltage" json:"voltage"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// VehicleLatest is the reconciled greatest-timestamp observation of a vehicle.
type VehicleLatest struct {
	VehicleID      string    `db:"vehicle_id" json:"vehicleId"`
	SoC            float64   `db:"soc" json:"soc"`
	KWhDeliveredDC float64   `db:"kwh_delivered_dc" json:"kwhDeliveredDc"`
	BatteryTemp    float64   `db:"battery_temp" json:"batteryTemp"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// MeterLatest is the reconciled greatest-timestamp observation of a meter.
type MeterLatest struct {
	MeterID       string    `db:"meter_id" json:"meterId"`
	KWhConsumedAC float64   `db:"kwh_consumed_ac" json:"kwhConsumedAc"`
	Voltage       float64   `db:"voltage" json:"voltage"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// Latest projects the sample onto its latest-state shape.
func (s VehicleSample) Latest() VehicleLatest {
	return VehicleLatest{
		VehicleID:      s.VehicleID,
		SoC:            s.SoC,
		KWhDeliveredDC: s.KWhDeliveredDC,
		BatteryTemp:    s.BatteryTemp,
		Timestamp:      s.Timestamp,
	}
}

// Latest projects the sample onto its latest-state shape.
func (s MeterSample) Latest() MeterLatest {
	return MeterLatest{
		MeterID:       s.MeterID,
		KWhConsumedAC: s.KWhConsumedAC,
		Voltage:       s.Voltage,
		Timestamp:     s.Timestamp,
	}
}

// DeviceMapping pairs a vehicle with the meter feeding it.
type DeviceMapping struct {
	VehicleID string `db:"vehicle_id" json:"vehicleId"`
	MeterID   string `db:"meter_id" json:"meterId"`
}

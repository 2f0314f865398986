package service

import "errors"

var (
	// ErrMappingNotFound is returned when a vehicle has no meter mapped to it.
	ErrMappingNotFound = errors.New("telemetry: mapping not found")
	// ErrLatestNotFound is returned when a device has never reported.
	ErrLatestNotFound = errors.New("telemetry: latest state not found")
)

package models

import "time"

// DeviceType enumerates the supported field sensor classes.
type DeviceType string

const (
	DeviceSoilMoisture     DeviceType = "soil_moisture"
	DeviceWeatherStation   DeviceType = "weather_station"
	DeviceIrrigationCtrl   DeviceType = "irrigation_controller"
	DeviceLivestockTracker DeviceType = "livestock_tracker"
	DeviceGreenhouse       DeviceType = "greenhouse_sensor"
	DeviceWaterQuality     DeviceType = "water_quality"
)

// DeviceStatus is the lifecycle state of a device.
type DeviceStatus string

const (
	StatusActive  DeviceStatus = "active"
	StatusOffline DeviceStatus = "offline"
)

// PowerMode is the generated power-management setting.
type PowerMode string

const (
	PowerStandard PowerMode = "standard"
	PowerLow      PowerMode = "low_power"
)

// GeoLocation is a device's position on the farm.
type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DeviceConfig is the configuration generated at registration and pushed
// to the device's config topic.
type DeviceConfig struct {
	SamplingIntervalSeconds int       `json:"sampling_interval_seconds"`
	EdgeProcessing          bool      `json:"edge_processing"`
	PowerMode               PowerMode `json:"power_mode"`
}

// Device is the registry record for a field sensor.
type Device struct {
	DeviceID        string             `json:"device_id"`
	DeviceType      DeviceType         `json:"device_type"`
	FarmID          string             `json:"farm_id"`
	FarmerRef       string             `json:"farmer_ref"`
	Location        GeoLocation        `json:"location"`
	Sensors         []string           `json:"sensors"`
	FirmwareVersion string             `json:"firmware_version"`
	Calibration     map[string]float64 `json:"calibration,omitempty"`
	Status          DeviceStatus       `json:"status"`
	LastSeen        time.Time          `json:"last_seen"`
	Battery         *int               `json:"battery,omitempty"`
	Config          DeviceConfig       `json:"config"`
	RegisteredAt    time.Time          `json:"registered_at"`
	LastMaintenance *time.Time         `json:"last_maintenance,omitempty"`
}

// DeviceSpec is the registration payload received on the register topic.
type DeviceSpec struct {
	DeviceID        string             `json:"device_id,omitempty"`
	DeviceType      DeviceType         `json:"device_type"`
	FarmID          string             `json:"farm_id"`
	FarmerRef       string             `json:"farmer_ref"`
	Location        GeoLocation        `json:"location"`
	Sensors         []string           `json:"sensors"`
	FirmwareVersion string             `json:"firmware_version"`
	Calibration     map[string]float64 `json:"calibration,omitempty"`
}

// OfflineEvent records a device going offline, for uptime reporting.
// DurationMinutes is nil when the device has not yet recovered.
type OfflineEvent struct {
	DeviceID        string    `json:"device_id"`
	FarmID          string    `json:"farm_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}

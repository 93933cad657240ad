package models

import "time"

// Reading is a raw telemetry message from a device. Immutable once created.
type Reading struct {
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"timestamp"`
	Sensors   map[string]float64 `json:"sensors"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

// TrendDirection classifies the short-term movement of a sensor series.
type TrendDirection string

const (
	TrendNone       TrendDirection = "none"
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// Trend is the result of trend detection over the recent window.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Rate      float64        `json:"rate"`
}

// Aggregate summarizes the window plus the newest value.
type Aggregate struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// SensorAnalysis is the edge analytics output for one sensor of one reading.
type SensorAnalysis struct {
	Anomaly   bool      `json:"anomaly"`
	Trend     Trend     `json:"trend"`
	Aggregate Aggregate `json:"aggregate"`
}

// ProcessedReading is a reading plus its per-sensor analysis map.
type ProcessedReading struct {
	Reading
	Analysis map[string]SensorAnalysis `json:"analysis"`
}

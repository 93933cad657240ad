package models

import "time"

// AlertKind distinguishes threshold breaches from statistical anomalies.
type AlertKind string

const (
	AlertThresholdBreach AlertKind = "threshold_breach"
	AlertAnomaly         AlertKind = "anomaly"
)

// AlertSeverity ranks an alert for routing and automation matching.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// BreachDirection says which bound of the threshold band was crossed.
type BreachDirection string

const (
	BreachAbove BreachDirection = "above"
	BreachBelow BreachDirection = "below"
)

// ThresholdBand is the acceptable numeric range for a sensor, configured
// per farm and device type. Owned by the external config collaborator.
type ThresholdBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Alert is an immutable record produced by the evaluator.
type Alert struct {
	AlertID   string          `json:"alert_id"`
	DeviceID  string          `json:"device_id"`
	FarmID    string          `json:"farm_id"`
	Kind      AlertKind       `json:"kind"`
	Severity  AlertSeverity   `json:"severity"`
	Sensor    string          `json:"sensor"`
	Value     float64         `json:"value"`
	Threshold *float64        `json:"threshold,omitempty"`
	Direction BreachDirection `json:"direction,omitempty"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

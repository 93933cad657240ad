package models

import "time"

// ReportPeriod is the time range a report covers.
type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the period length in whole minutes.
func (p ReportPeriod) Minutes() float64 {
	return p.End.Sub(p.Start).Minutes()
}

// Reliability classifies device uptime for the report consumer.
type Reliability string

const (
	ReliabilityExcellent      Reliability = "excellent"
	ReliabilityGood           Reliability = "good"
	ReliabilityNeedsAttention Reliability = "needs_attention"
)

// DeviceReport is the per-device performance summary.
type DeviceReport struct {
	DeviceID        string       `json:"device_id"`
	DeviceType      DeviceType   `json:"device_type"`
	Period          ReportPeriod `json:"period"`
	UptimePercent   float64      `json:"uptime_percent"`
	DowntimeMinutes float64      `json:"downtime_minutes"`
	ReadingCount    int          `json:"reading_count"`
	AlertCount      int          `json:"alert_count"`
	Reliability     Reliability  `json:"reliability"`
}

// FarmInsights flags fleet-level problems across a farm's devices.
type FarmInsights struct {
	FarmID             string         `json:"farm_id"`
	Period             ReportPeriod   `json:"period"`
	DeviceCount        int            `json:"device_count"`
	AvgUptimePercent   float64        `json:"avg_uptime_percent"`
	AlertsPerDevice    float64        `json:"alerts_per_device"`
	LowUptime          bool           `json:"low_uptime"`
	ExcessiveAlerts    bool           `json:"excessive_alerts"`
	MaintenanceOverdue []string       `json:"maintenance_overdue"`
	Reports            []DeviceReport `json:"reports"`
}

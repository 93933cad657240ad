// Package report computes device performance summaries and fleet-level
// insights for the dashboard consumer.
package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/repository"
)

// defaultOfflineMinutes is assumed for offline events with no recorded
// duration (the device never recovered inside the period).
const defaultOfflineMinutes = 30

// maintenanceOverdueAfter is how long without maintenance before a device
// is flagged.
const maintenanceOverdueAfter = 90 * 24 * time.Hour

// Generator produces reports from the durable store.
type Generator struct {
	readings repository.ReadingStore
	alerts   repository.AlertStore
	offline  repository.OfflineEventStore
	logger   *zap.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(
	readings repository.ReadingStore,
	alerts repository.AlertStore,
	offline repository.OfflineEventStore,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		readings: readings,
		alerts:   alerts,
		offline:  offline,
		logger:   logger,
	}
}

// DeviceReport computes uptime, activity counts and a reliability class
// for one device over the period.
func (g *Generator) DeviceReport(ctx context.Context, device models.Device, period models.ReportPeriod) (*models.DeviceReport, error) {
	total := period.Minutes()
	if total <= 0 {
		return nil, fmt.Errorf("report period is empty")
	}

	events, err := g.offline.ListOfflineEvents(ctx, device.DeviceID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load offline events for %s: %w", device.DeviceID, err)
	}

	var downtime float64
	for _, event := range events {
		if event.DurationMinutes != nil {
			downtime += float64(*event.DurationMinutes)
		} else {
			downtime += defaultOfflineMinutes
		}
	}
	if downtime > total {
		downtime = total
	}

	uptime := (total - downtime) / total * 100

	readingCount, err := g.readings.CountReadings(ctx, device.DeviceID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings for %s: %w", device.DeviceID, err)
	}

	alertCount, err := g.alerts.CountAlerts(ctx, device.DeviceID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts for %s: %w", device.DeviceID, err)
	}

	return &models.DeviceReport{
		DeviceID:        device.DeviceID,
		DeviceType:      device.DeviceType,
		Period:          period,
		UptimePercent:   uptime,
		DowntimeMinutes: downtime,
		ReadingCount:    readingCount,
		AlertCount:      alertCount,
		Reliability:     classifyReliability(uptime),
	}, nil
}

// FarmInsights aggregates device reports across a farm and flags low
// average uptime, excessive alert volume and devices overdue for
// maintenance. A device whose report fails is logged and skipped so one
// bad device never hides the rest of the fleet.
func (g *Generator) FarmInsights(ctx context.Context, farmID string, devices []models.Device, period models.ReportPeriod) (*models.FarmInsights, error) {
	insights := &models.FarmInsights{
		FarmID: farmID,
		Period: period,
	}

	var uptimeSum float64
	var alertSum int

	for _, device := range devices {
		report, err := g.DeviceReport(ctx, device, period)
		if err != nil {
			g.logger.Error("Skipping device in farm insights",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
			continue
		}

		insights.Reports = append(insights.Reports, *report)
		uptimeSum += report.UptimePercent
		alertSum += report.AlertCount

		if device.LastMaintenance == nil || period.End.Sub(*device.LastMaintenance) >= maintenanceOverdueAfter {
			insights.MaintenanceOverdue = append(insights.MaintenanceOverdue, device.DeviceID)
		}
	}

	n := len(insights.Reports)
	insights.DeviceCount = n
	if n == 0 {
		return insights, nil
	}

	insights.AvgUptimePercent = uptimeSum / float64(n)
	insights.AlertsPerDevice = float64(alertSum) / float64(n)
	insights.LowUptime = insights.AvgUptimePercent < 90
	insights.ExcessiveAlerts = insights.AlertsPerDevice > 10

	return insights, nil
}

func classifyReliability(uptime float64) models.Reliability {
	switch {
	case uptime > 95:
		return models.ReliabilityExcellent
	case uptime > 85:
		return models.ReliabilityGood
	default:
		return models.ReliabilityNeedsAttention
	}
}

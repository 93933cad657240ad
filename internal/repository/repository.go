// Package repository defines the durable-store collaborator boundary and
// its PostgreSQL implementations. The engine owns no data: devices,
// readings, alerts, offline events, automation rules and threshold bands
// all live in the external store.
package repository

import (
	"context"

	"cropwatch-engine/internal/models"
)

// DeviceStore persists registry mutations and loads devices on demand.
type DeviceStore interface {
	SaveDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	UpdateDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error
	ListDevicesByFarm(ctx context.Context, farmID string) ([]models.Device, error)
}

// ReadingStore persists raw readings and answers in-period counts.
type ReadingStore interface {
	InsertReading(ctx context.Context, reading *models.Reading) error
	CountReadings(ctx context.Context, deviceID string, period models.ReportPeriod) (int, error)
}

// AlertStore persists alerts and answers in-period counts.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.Alert) error
	CountAlerts(ctx context.Context, deviceID string, period models.ReportPeriod) (int, error)
}

// OfflineEventStore records offline transitions for uptime reporting.
type OfflineEventStore interface {
	InsertOfflineEvent(ctx context.Context, event *models.OfflineEvent) error
	CloseOfflineEvent(ctx context.Context, deviceID string, durationMinutes int) error
	ListOfflineEvents(ctx context.Context, deviceID string, period models.ReportPeriod) ([]models.OfflineEvent, error)
}

// AutomationStore reads farm automation rules. Rules are defined elsewhere;
// the engine never mutates them.
type AutomationStore interface {
	ListEnabledRules(ctx context.Context, farmID string) ([]models.AutomationRule, error)
}

// ThresholdStore looks up sensor threshold bands per farm and device type.
// A missing band is (nil, nil), not an error.
type ThresholdStore interface {
	GetBand(ctx context.Context, farmID string, deviceType models.DeviceType, sensor string) (*models.ThresholdBand, error)
}

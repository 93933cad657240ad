package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

type fakeReadingStore struct {
	counts map[string]int
}

func (f *fakeReadingStore) InsertReading(context.Context, *models.Reading) error { return nil }
func (f *fakeReadingStore) CountReadings(_ context.Context, deviceID string, _ models.ReportPeriod) (int, error) {
	return f.counts[deviceID], nil
}

type fakeAlertStore struct {
	counts map[string]int
}

func (f *fakeAlertStore) InsertAlert(context.Context, *models.Alert) error { return nil }
func (f *fakeAlertStore) CountAlerts(_ context.Context, deviceID string, _ models.ReportPeriod) (int, error) {
	return f.counts[deviceID], nil
}

type fakeOfflineStore struct {
	events map[string][]models.OfflineEvent
	err    error
}

func (f *fakeOfflineStore) InsertOfflineEvent(context.Context, *models.OfflineEvent) error {
	return nil
}
func (f *fakeOfflineStore) CloseOfflineEvent(context.Context, string, int) error { return nil }
func (f *fakeOfflineStore) ListOfflineEvents(_ context.Context, deviceID string, _ models.ReportPeriod) ([]models.OfflineEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[deviceID], nil
}

func thousandMinutePeriod() models.ReportPeriod {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return models.ReportPeriod{Start: start, End: start.Add(1000 * time.Minute)}
}

func soilDevice(id string) models.Device {
	return models.Device{DeviceID: id, DeviceType: models.DeviceSoilMoisture, FarmID: "farm-1"}
}

func TestDeviceReport_DefaultOfflineDuration(t *testing.T) {
	offline := &fakeOfflineStore{events: map[string][]models.OfflineEvent{
		"dev-1": {{DeviceID: "dev-1", StartedAt: time.Now()}}, // no duration recorded
	}}
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, offline, zap.NewNop())

	report, err := gen.DeviceReport(context.Background(), soilDevice("dev-1"), thousandMinutePeriod())

	require.NoError(t, err)
	assert.InDelta(t, 97.0, report.UptimePercent, 1e-9)
	assert.Equal(t, 30.0, report.DowntimeMinutes)
	assert.Equal(t, models.ReliabilityExcellent, report.Reliability)
}

func TestDeviceReport_RecordedDurations(t *testing.T) {
	d1, d2 := 60, 90
	offline := &fakeOfflineStore{events: map[string][]models.OfflineEvent{
		"dev-1": {
			{DeviceID: "dev-1", DurationMinutes: &d1},
			{DeviceID: "dev-1", DurationMinutes: &d2},
		},
	}}
	gen := NewGenerator(&fakeReadingStore{counts: map[string]int{"dev-1": 120}},
		&fakeAlertStore{counts: map[string]int{"dev-1": 3}}, offline, zap.NewNop())

	report, err := gen.DeviceReport(context.Background(), soilDevice("dev-1"), thousandMinutePeriod())

	require.NoError(t, err)
	assert.InDelta(t, 85.0, report.UptimePercent, 1e-9)
	assert.Equal(t, 150.0, report.DowntimeMinutes)
	assert.Equal(t, 120, report.ReadingCount)
	assert.Equal(t, 3, report.AlertCount)
	// 85 is not >85, so this lands in needs_attention.
	assert.Equal(t, models.ReliabilityNeedsAttention, report.Reliability)
}

func TestDeviceReport_NoOfflineEvents(t *testing.T) {
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, &fakeOfflineStore{}, zap.NewNop())

	report, err := gen.DeviceReport(context.Background(), soilDevice("dev-1"), thousandMinutePeriod())

	require.NoError(t, err)
	assert.Equal(t, 100.0, report.UptimePercent)
	assert.Equal(t, models.ReliabilityExcellent, report.Reliability)
}

func TestDeviceReport_DowntimeCappedAtPeriod(t *testing.T) {
	huge := 5000
	offline := &fakeOfflineStore{events: map[string][]models.OfflineEvent{
		"dev-1": {{DeviceID: "dev-1", DurationMinutes: &huge}},
	}}
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, offline, zap.NewNop())

	report, err := gen.DeviceReport(context.Background(), soilDevice("dev-1"), thousandMinutePeriod())

	require.NoError(t, err)
	assert.Equal(t, 0.0, report.UptimePercent)
}

func TestDeviceReport_EmptyPeriod(t *testing.T) {
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, &fakeOfflineStore{}, zap.NewNop())

	now := time.Now()
	_, err := gen.DeviceReport(context.Background(), soilDevice("dev-1"),
		models.ReportPeriod{Start: now, End: now})

	assert.Error(t, err)
}

func TestFarmInsights_Flags(t *testing.T) {
	// dev-1 healthy, dev-2 mostly down and noisy.
	down := 400
	offline := &fakeOfflineStore{events: map[string][]models.OfflineEvent{
		"dev-2": {{DeviceID: "dev-2", DurationMinutes: &down}},
	}}
	alerts := &fakeAlertStore{counts: map[string]int{"dev-1": 2, "dev-2": 25}}
	gen := NewGenerator(&fakeReadingStore{}, alerts, offline, zap.NewNop())

	maintained := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	dev1 := soilDevice("dev-1")
	dev1.LastMaintenance = &maintained
	dev2 := soilDevice("dev-2") // never maintained

	insights, err := gen.FarmInsights(context.Background(), "farm-1",
		[]models.Device{dev1, dev2}, thousandMinutePeriod())

	require.NoError(t, err)
	assert.Equal(t, 2, insights.DeviceCount)
	// dev-1 100%, dev-2 60% -> avg 80%
	assert.InDelta(t, 80.0, insights.AvgUptimePercent, 1e-9)
	assert.True(t, insights.LowUptime)
	// (2+25)/2 = 13.5 alerts per device
	assert.InDelta(t, 13.5, insights.AlertsPerDevice, 1e-9)
	assert.True(t, insights.ExcessiveAlerts)
	assert.Equal(t, []string{"dev-2"}, insights.MaintenanceOverdue)
}

func TestFarmInsights_SkipsFailingDevice(t *testing.T) {
	offline := &fakeOfflineStore{err: errors.New("store down")}
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, offline, zap.NewNop())

	insights, err := gen.FarmInsights(context.Background(), "farm-1",
		[]models.Device{soilDevice("dev-1")}, thousandMinutePeriod())

	require.NoError(t, err)
	assert.Equal(t, 0, insights.DeviceCount)
	assert.Empty(t, insights.Reports)
}

func TestFarmInsights_NoDevices(t *testing.T) {
	gen := NewGenerator(&fakeReadingStore{}, &fakeAlertStore{}, &fakeOfflineStore{}, zap.NewNop())

	insights, err := gen.FarmInsights(context.Background(), "farm-1", nil, thousandMinutePeriod())

	require.NoError(t, err)
	assert.Equal(t, 0, insights.DeviceCount)
	assert.False(t, insights.LowUptime)
}

// Package registry owns the in-memory device table: lifecycle state,
// battery/firmware bookkeeping and generated configuration. All mutation
// for one device arrives through the router's per-device serialization.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/mqtt"
	"cropwatch-engine/internal/repository"
)

// samplingIntervals maps device types to sampling intervals in seconds.
var samplingIntervals = map[models.DeviceType]int{
	models.DeviceSoilMoisture:     300,
	models.DeviceWeatherStation:   600,
	models.DeviceIrrigationCtrl:   60,
	models.DeviceLivestockTracker: 120,
	models.DeviceGreenhouse:       300,
	models.DeviceWaterQuality:     900,
}

const defaultSamplingInterval = 300

// lowPowerTypes run on battery in the field and get the low-power profile.
var lowPowerTypes = map[models.DeviceType]bool{
	models.DeviceSoilMoisture:     true,
	models.DeviceLivestockTracker: true,
	models.DeviceWaterQuality:     true,
}

// Registry is the in-memory device table backed by the durable store.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*models.Device
	store     repository.DeviceStore
	publisher mqtt.Publisher
	logger    *zap.Logger
}

// New creates an empty registry.
func New(store repository.DeviceStore, publisher mqtt.Publisher, logger *zap.Logger) *Registry {
	return &Registry{
		devices:   make(map[string]*models.Device),
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Register creates or replaces a device entry, generates its config,
// persists it and publishes the config to the device's config topic.
// A registration with the same spec is idempotent: same ID, equivalent
// config republished.
func (r *Registry) Register(ctx context.Context, spec models.DeviceSpec) (*models.Device, error) {
	if spec.FarmID == "" {
		return nil, fmt.Errorf("device spec missing farm_id")
	}
	if spec.DeviceType == "" {
		return nil, fmt.Errorf("device spec missing device_type")
	}

	deviceID := spec.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	now := time.Now().UTC()
	device := &models.Device{
		DeviceID:        deviceID,
		DeviceType:      spec.DeviceType,
		FarmID:          spec.FarmID,
		FarmerRef:       spec.FarmerRef,
		Location:        spec.Location,
		Sensors:         spec.Sensors,
		FirmwareVersion: spec.FirmwareVersion,
		Calibration:     spec.Calibration,
		Status:          models.StatusActive,
		LastSeen:        now,
		Config:          generateConfig(spec),
		RegisteredAt:    now,
	}

	// Re-registration keeps the original registration time and the
	// bookkeeping fields a fresh spec does not carry.
	r.mu.Lock()
	if existing, ok := r.devices[deviceID]; ok {
		device.RegisteredAt = existing.RegisteredAt
		device.Battery = existing.Battery
		device.LastMaintenance = existing.LastMaintenance
	}
	r.devices[deviceID] = device
	r.mu.Unlock()

	if err := r.store.SaveDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to persist device %s: %w", deviceID, err)
	}

	if err := r.publishConfig(device); err != nil {
		// The device is registered; config can be re-synced later over
		// the edge sync topic.
		r.logger.Warn("Failed to publish device config",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	r.logger.Info("Device registered",
		zap.String("device_id", deviceID),
		zap.String("device_type", string(device.DeviceType)),
		zap.String("farm_id", device.FarmID),
	)

	return device, nil
}

// Get is a non-blocking lookup returning a copy.
func (r *Registry) Get(deviceID string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, false
	}
	return *device, true
}

// Touch updates lastSeen and flips an offline device back to active.
// It returns true when the device recovered; the caller owns the recovery
// side effects (notification, closing the offline event).
func (r *Registry) Touch(ctx context.Context, deviceID string, ts time.Time) (bool, error) {
	r.mu.Lock()
	device, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("unknown device: %s", deviceID)
	}

	device.LastSeen = ts
	recovered := device.Status == models.StatusOffline
	if recovered {
		device.Status = models.StatusActive
	}
	r.mu.Unlock()

	if recovered {
		if err := r.store.UpdateDeviceStatus(ctx, deviceID, models.StatusActive); err != nil {
			return true, fmt.Errorf("failed to persist recovery of %s: %w", deviceID, err)
		}
	}

	return recovered, nil
}

// MarkOffline transitions a device to offline. Only the maintenance
// sweeper calls this. Returns false when the device was already offline
// or unknown, so repeated sweeps stay idempotent.
func (r *Registry) MarkOffline(ctx context.Context, deviceID string) (bool, error) {
	r.mu.Lock()
	device, ok := r.devices[deviceID]
	if !ok || device.Status == models.StatusOffline {
		r.mu.Unlock()
		return false, nil
	}
	device.Status = models.StatusOffline
	r.mu.Unlock()

	if err := r.store.UpdateDeviceStatus(ctx, deviceID, models.StatusOffline); err != nil {
		return true, fmt.Errorf("failed to persist offline status of %s: %w", deviceID, err)
	}

	return true, nil
}

// UpdateStatusInfo records battery and firmware reported on the status
// topic. Absent fields leave the record untouched.
func (r *Registry) UpdateStatusInfo(deviceID string, update models.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return fmt.Errorf("unknown device: %s", deviceID)
	}

	if update.Battery != nil {
		device.Battery = update.Battery
	}
	if update.FirmwareVersion != "" {
		device.FirmwareVersion = update.FirmwareVersion
	}

	return nil
}

// Snapshot returns a copy of every device for cross-device iteration
// (sweeps, reports). Reads may be momentarily stale by design of the
// concurrency model.
func (r *Registry) Snapshot() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, *device)
	}
	return devices
}

// Load seeds the registry from the durable store at startup.
func (r *Registry) Load(devices []models.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range devices {
		device := devices[i]
		r.devices[device.DeviceID] = &device
	}
}

// PublishConfig republishes a device's generated config, used by the edge
// sync path.
func (r *Registry) PublishConfig(deviceID string) error {
	r.mu.RLock()
	device, ok := r.devices[deviceID]
	if !ok {
		r.mu.RUnlock()
		return fmt.Errorf("unknown device: %s", deviceID)
	}
	copied := *device
	r.mu.RUnlock()

	return r.publishConfig(&copied)
}

func (r *Registry) publishConfig(device *models.Device) error {
	payload, err := json.Marshal(device.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config for %s: %w", device.DeviceID, err)
	}

	topic := fmt.Sprintf("devices/%s/config", device.DeviceID)
	if err := r.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("failed to publish config for %s: %w", device.DeviceID, err)
	}

	return nil
}

// generateConfig derives the device configuration from its type. Sampling
// interval comes from a fixed per-type table with a default fallback;
// livestock trackers skip edge processing (mobile, intermittent links);
// battery-powered types get the low-power profile.
func generateConfig(spec models.DeviceSpec) models.DeviceConfig {
	interval, ok := samplingIntervals[spec.DeviceType]
	if !ok {
		interval = defaultSamplingInterval
	}

	powerMode := models.PowerStandard
	if lowPowerTypes[spec.DeviceType] {
		powerMode = models.PowerLow
	}

	return models.DeviceConfig{
		SamplingIntervalSeconds: interval,
		EdgeProcessing:          spec.DeviceType != models.DeviceLivestockTracker,
		PowerMode:               powerMode,
	}
}

// Package sweeper runs the periodic maintenance scan: inactivity-based
// offline transitions, low-battery flags and stale-firmware flags.
package sweeper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/notify"
	"cropwatch-engine/internal/registry"
	"cropwatch-engine/internal/repository"
)

// latestFirmware is the current firmware release per device type. Devices
// reporting an older version get flagged for an update.
var latestFirmware = map[models.DeviceType]string{
	models.DeviceSoilMoisture:     "1.4.0",
	models.DeviceWeatherStation:   "2.1.0",
	models.DeviceIrrigationCtrl:   "3.0.2",
	models.DeviceLivestockTracker: "1.2.1",
	models.DeviceGreenhouse:       "1.4.0",
	models.DeviceWaterQuality:     "1.0.3",
}

// Enqueuer serializes a task onto a device's router queue, so sweeps never
// race an in-flight touch.
type Enqueuer interface {
	Enqueue(deviceID string, task func(ctx context.Context)) error
}

// Sweeper scans the registry on a fixed interval.
type Sweeper struct {
	registry *registry.Registry
	enqueuer Enqueuer
	offline  repository.OfflineEventStore
	notifier notify.Notifier
	logger   *zap.Logger

	interval          time.Duration
	inactivityTimeout time.Duration
	lowBattery        int

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// New creates a sweeper.
func New(
	reg *registry.Registry,
	enqueuer Enqueuer,
	offline repository.OfflineEventStore,
	notifier notify.Notifier,
	interval time.Duration,
	inactivityTimeout time.Duration,
	lowBattery int,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		registry:          reg,
		enqueuer:          enqueuer,
		offline:           offline,
		notifier:          notifier,
		interval:          interval,
		inactivityTimeout: inactivityTimeout,
		lowBattery:        lowBattery,
		logger:            logger,
		stopped:           make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Maintenance sweeper started",
			zap.Duration("interval", s.interval),
			zap.Duration("inactivity_timeout", s.inactivityTimeout),
		)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopped:
				return
			case <-ticker.C:
				s.Sweep(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop halts the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
	<-s.done
}

// Sweep runs one maintenance pass over every device. Offline transitions
// go through the per-device queue; battery and firmware flags are
// read-only and raised on every pass independent of the transition.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	for _, device := range s.registry.Snapshot() {
		device := device

		if device.Status == models.StatusActive && now.Sub(device.LastSeen) > s.inactivityTimeout {
			if err := s.enqueuer.Enqueue(device.DeviceID, func(taskCtx context.Context) {
				s.transitionOffline(taskCtx, device)
			}); err != nil {
				s.logger.Warn("Failed to enqueue offline transition",
					zap.String("device_id", device.DeviceID),
					zap.Error(err),
				)
			}
		}

		s.checkBattery(ctx, device)
		s.checkFirmware(ctx, device)
	}
}

// transitionOffline runs on the device's serialized queue. MarkOffline is
// idempotent, so a touch that slipped in before this task (or a previous
// sweep) makes it a no-op: exactly one offline event per outage.
func (s *Sweeper) transitionOffline(ctx context.Context, device models.Device) {
	// Re-read under serialization; the snapshot may be stale.
	current, ok := s.registry.Get(device.DeviceID)
	if !ok || current.Status != models.StatusActive {
		return
	}
	if time.Now().UTC().Sub(current.LastSeen) <= s.inactivityTimeout {
		return
	}

	transitioned, err := s.registry.MarkOffline(ctx, device.DeviceID)
	if err != nil {
		s.logger.Error("Failed to mark device offline",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
		return
	}
	if !transitioned {
		return
	}

	s.logger.Info("Device marked offline",
		zap.String("device_id", device.DeviceID),
		zap.Time("last_seen", current.LastSeen),
	)

	if err := s.offline.InsertOfflineEvent(ctx, &models.OfflineEvent{
		DeviceID:  device.DeviceID,
		FarmID:    device.FarmID,
		StartedAt: current.LastSeen,
	}); err != nil {
		s.logger.Error("Failed to record offline event",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}

	if err := s.notifier.SendNotification(ctx, device.FarmerRef,
		notify.Message{
			Title: "Device offline",
			Body:  fmt.Sprintf("Device %s has not reported for over %s", device.DeviceID, s.inactivityTimeout),
			Data:  map[string]string{"device_id": device.DeviceID},
		},
		notify.Options{Channels: []string{"push"}, Priority: "high"},
	); err != nil {
		s.logger.Warn("Offline notification failed",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
}

func (s *Sweeper) checkBattery(ctx context.Context, device models.Device) {
	if device.Battery == nil || *device.Battery >= s.lowBattery {
		return
	}

	if err := s.notifier.SendNotification(ctx, device.FarmerRef,
		notify.Message{
			Title: "Low battery",
			Body:  fmt.Sprintf("Device %s battery at %d%%", device.DeviceID, *device.Battery),
			Data:  map[string]string{"device_id": device.DeviceID},
		},
		notify.Options{Channels: []string{"push"}, Priority: "normal"},
	); err != nil {
		s.logger.Warn("Low battery notification failed",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
}

func (s *Sweeper) checkFirmware(ctx context.Context, device models.Device) {
	latest, ok := latestFirmware[device.DeviceType]
	if !ok || device.FirmwareVersion == "" {
		return
	}
	if compareVersions(device.FirmwareVersion, latest) >= 0 {
		return
	}

	if err := s.notifier.SendNotification(ctx, device.FarmerRef,
		notify.Message{
			Title: "Firmware update available",
			Body:  fmt.Sprintf("Device %s runs %s, latest is %s", device.DeviceID, device.FirmwareVersion, latest),
			Data:  map[string]string{"device_id": device.DeviceID},
		},
		notify.Options{Channels: []string{"push"}, Priority: "low"},
	); err != nil {
		s.logger.Warn("Firmware notification failed",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
}

// compareVersions compares dotted numeric versions: -1 when a < b, 0 when
// equal, 1 when a > b. Non-numeric segments compare as 0.
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}

	return 0
}

// Package router owns the transport subscriptions. It decodes each topic
// into (deviceID, message kind), dispatches to exactly one handler, and
// serializes all processing per device so registry and history mutations
// never race. Distinct devices process in parallel.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cropwatch-engine/internal/analytics"
	"cropwatch-engine/internal/automation"
	"cropwatch-engine/internal/evaluator"
	"cropwatch-engine/internal/history"
	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/notify"
	"cropwatch-engine/internal/registry"
	"cropwatch-engine/internal/repository"
	"cropwatch-engine/internal/stream"
)

// ErrShutdown is returned when work arrives after Stop began.
var ErrShutdown = errors.New("router is shutting down")

// subscriptions are the fixed topic patterns the router owns.
var subscriptions = []string{
	"devices/+/register",
	"devices/+/data",
	"devices/+/status",
	"devices/+/config",
	"edge/+/compute",
	"edge/+/sync",
}

// Subscriber is the transport side the router needs.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte) error) error
	Unsubscribe(topics ...string) error
	Publish(topic string, payload []byte) error
}

// Router decodes inbound messages and runs the processing pipeline.
type Router struct {
	transport  Subscriber
	registry   *registry.Registry
	history    *history.Store
	evaluator  *evaluator.Evaluator
	dispatcher *automation.Dispatcher
	readings   repository.ReadingStore
	alerts     repository.AlertStore
	offline    repository.OfflineEventStore
	publisher  *stream.Publisher
	notifier   notify.Notifier
	logger     *zap.Logger

	queueSize int

	mu     sync.RWMutex
	queues map[string]chan func()
	closed bool
	wg     sync.WaitGroup

	ctx context.Context
}

// New creates a router. Start must be called before messages flow.
func New(
	transport Subscriber,
	reg *registry.Registry,
	hist *history.Store,
	eval *evaluator.Evaluator,
	dispatcher *automation.Dispatcher,
	readings repository.ReadingStore,
	alerts repository.AlertStore,
	offline repository.OfflineEventStore,
	publisher *stream.Publisher,
	notifier notify.Notifier,
	queueSize int,
	logger *zap.Logger,
) *Router {
	return &Router{
		transport:  transport,
		registry:   reg,
		history:    hist,
		evaluator:  eval,
		dispatcher: dispatcher,
		readings:   readings,
		alerts:     alerts,
		offline:    offline,
		publisher:  publisher,
		notifier:   notifier,
		queueSize:  queueSize,
		queues:     make(map[string]chan func()),
		logger:     logger,
	}
}

// Start subscribes to the device and edge topic patterns.
func (r *Router) Start(ctx context.Context) error {
	r.ctx = ctx

	for _, topic := range subscriptions {
		if err := r.transport.Subscribe(topic, r.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	r.logger.Info("Message router started",
		zap.Strings("topics", subscriptions),
	)

	return nil
}

// Stop unsubscribes and drains every per-device queue. No in-flight
// reading is abandoned.
func (r *Router) Stop() {
	if err := r.transport.Unsubscribe(subscriptions...); err != nil {
		r.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	queues := make([]chan func(), 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	r.wg.Wait()

	r.logger.Info("Message router stopped")
}

// Enqueue runs task on the device's serialized queue. The maintenance
// sweeper uses this so status transitions never race an in-flight touch.
func (r *Router) Enqueue(deviceID string, task func(ctx context.Context)) error {
	return r.enqueue(deviceID, func() { task(r.ctx) })
}

func (r *Router) enqueue(deviceID string, task func()) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrShutdown
	}
	q, ok := r.queues[deviceID]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return ErrShutdown
		}
		q, ok = r.queues[deviceID]
		if !ok {
			q = make(chan func(), r.queueSize)
			r.queues[deviceID] = q
			r.wg.Add(1)
			go r.runQueue(deviceID, q)
		}
		r.mu.Unlock()
	}

	// The read lock pins the queue open: Stop cannot flip closed and
	// close the channel until this send returns.
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrShutdown
	}
	q <- task
	return nil
}

func (r *Router) runQueue(deviceID string, q chan func()) {
	defer r.wg.Done()
	for task := range q {
		task()
	}
}

// handleMessage decodes the topic and dispatches to the device's queue.
// Malformed topics and payloads are logged and dropped; the subscription
// stays alive.
func (r *Router) handleMessage(topic string, payload []byte) error {
	deviceID, kind, err := decodeTopic(topic)
	if err != nil {
		r.logger.Warn("Dropping message with malformed topic",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}

	if kind == models.KindUnknown {
		// Config messages are our own publishes echoed back; anything
		// else unrecognized is ignored by contract.
		return nil
	}

	return r.enqueue(deviceID, func() {
		switch kind {
		case models.KindRegister:
			r.handleRegister(deviceID, payload)
		case models.KindData:
			r.handleData(deviceID, payload)
		case models.KindStatus:
			r.handleStatus(deviceID, payload)
		case models.KindCompute:
			r.handleCompute(deviceID, payload)
		case models.KindSync:
			r.handleSync(deviceID)
		}
	})
}

// decodeTopic splits "devices/{id}/{action}" and "edge/{id}/{action}"
// into the device identifier and the message kind.
func decodeTopic(topic string) (string, models.MessageKind, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", models.KindUnknown, fmt.Errorf("invalid topic format: %s", topic)
	}

	deviceID := parts[1]

	switch parts[0] {
	case "devices":
		switch parts[2] {
		case "register":
			return deviceID, models.KindRegister, nil
		case "data":
			return deviceID, models.KindData, nil
		case "status":
			return deviceID, models.KindStatus, nil
		case "config":
			return deviceID, models.KindUnknown, nil
		}
	case "edge":
		switch parts[2] {
		case "compute":
			return deviceID, models.KindCompute, nil
		case "sync":
			return deviceID, models.KindSync, nil
		}
	}

	return deviceID, models.KindUnknown, nil
}

func (r *Router) handleRegister(deviceID string, payload []byte) {
	var spec models.DeviceSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		r.logger.Warn("Dropping malformed registration payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	if spec.DeviceID == "" {
		spec.DeviceID = deviceID
	}

	if _, err := r.registry.Register(r.ctx, spec); err != nil {
		r.logger.Error("Device registration failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// handleData runs the full pipeline for one reading: touch, analytics over
// the prior window plus the new value, threshold evaluation, persistence,
// automation dispatch, and stream publication.
func (r *Router) handleData(deviceID string, payload []byte) {
	var reading models.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		r.logger.Warn("Dropping malformed reading payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}
	reading.DeviceID = deviceID
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	device, ok := r.registry.Get(deviceID)
	if !ok {
		r.logger.Warn("Dropping reading from unknown device",
			zap.String("device_id", deviceID),
		)
		return
	}

	recovered, err := r.registry.Touch(r.ctx, deviceID, reading.Timestamp)
	if err != nil {
		r.logger.Error("Failed to touch device",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	if recovered {
		r.onRecovered(device, reading.Timestamp)
	}

	processed := &models.ProcessedReading{
		Reading:  reading,
		Analysis: make(map[string]models.SensorAnalysis, len(reading.Sensors)),
	}
	for sensor, value := range reading.Sensors {
		window := r.history.Window(deviceID, sensor)
		processed.Analysis[sensor] = analytics.Analyze(window, value)
		r.history.Append(deviceID, sensor, value)
	}

	alerts := r.evaluator.Evaluate(r.ctx, device, processed)

	if err := r.readings.InsertReading(r.ctx, &reading); err != nil {
		r.logger.Error("Failed to persist reading",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	for i := range alerts {
		alert := alerts[i]

		if err := r.alerts.InsertAlert(r.ctx, &alert); err != nil {
			r.logger.Error("Failed to persist alert",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}

		if _, err := r.dispatcher.Dispatch(r.ctx, device, alert); err != nil {
			r.logger.Error("Automation dispatch failed",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}

		if err := r.notifier.SendNotification(r.ctx, device.FarmerRef,
			notify.Message{
				Title: fmt.Sprintf("%s alert on %s", alert.Severity, deviceID),
				Body:  alert.Message,
				Data: map[string]string{
					"device_id": deviceID,
					"alert_id":  alert.AlertID,
					"kind":      string(alert.Kind),
				},
			},
			notify.Options{Channels: []string{"push"}, Priority: string(alert.Severity)},
		); err != nil {
			r.logger.Warn("Alert notification failed",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}

		if _, err := r.publisher.PublishAlert(r.ctx, &alert); err != nil {
			r.logger.Error("Failed to publish alert to stream",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}
	}

	if _, err := r.publisher.PublishReading(r.ctx, processed); err != nil {
		r.logger.Error("Failed to publish processed reading",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// onRecovered closes the open offline event and sends the recovery
// notification.
func (r *Router) onRecovered(device models.Device, recoveredAt time.Time) {
	r.logger.Info("Device recovered",
		zap.String("device_id", device.DeviceID),
	)

	downtime := int(recoveredAt.Sub(device.LastSeen).Minutes())
	if downtime < 0 {
		downtime = 0
	}
	if err := r.offline.CloseOfflineEvent(r.ctx, device.DeviceID, downtime); err != nil {
		r.logger.Error("Failed to close offline event",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}

	if err := r.notifier.SendNotification(r.ctx, device.FarmerRef,
		notify.Message{
			Title: "Device back online",
			Body:  fmt.Sprintf("Device %s is sending data again", device.DeviceID),
			Data:  map[string]string{"device_id": device.DeviceID},
		},
		notify.Options{Channels: []string{"push"}, Priority: "normal"},
	); err != nil {
		r.logger.Warn("Recovery notification failed",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}
}

func (r *Router) handleStatus(deviceID string, payload []byte) {
	var update models.StatusUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		r.logger.Warn("Dropping malformed status payload",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	device, ok := r.registry.Get(deviceID)
	if !ok {
		r.logger.Warn("Dropping status from unknown device",
			zap.String("device_id", deviceID),
		)
		return
	}

	if err := r.registry.UpdateStatusInfo(deviceID, update); err != nil {
		r.logger.Error("Failed to update device status info",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	// A status report proves liveness the same way data does.
	now := time.Now().UTC()
	if recovered, err := r.registry.Touch(r.ctx, deviceID, now); err != nil {
		r.logger.Error("Failed to touch device on status",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	} else if recovered {
		r.onRecovered(device, now)
	}
}

// handleCompute runs the edge analytics set on demand over the sensor's
// current window and publishes the result to the device's analysis topic.
func (r *Router) handleCompute(deviceID string, payload []byte) {
	var req models.ComputeRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Sensor == "" {
		r.logger.Warn("Dropping malformed compute request",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	window := r.history.Window(deviceID, req.Sensor)
	if len(window) == 0 {
		r.logger.Warn("Compute request for sensor with no history",
			zap.String("device_id", deviceID),
			zap.String("sensor", req.Sensor),
		)
		return
	}

	latest := window[len(window)-1]
	analysis := analytics.Analyze(window[:len(window)-1], latest)

	result, err := json.Marshal(map[string]any{
		"sensor":   req.Sensor,
		"analysis": analysis,
	})
	if err != nil {
		r.logger.Error("Failed to marshal compute result", zap.Error(err))
		return
	}

	topic := fmt.Sprintf("edge/%s/analysis", deviceID)
	if err := r.transport.Publish(topic, result); err != nil {
		r.logger.Error("Failed to publish compute result",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// handleSync republishes the device's generated config for edge nodes
// rejoining after a disconnect.
func (r *Router) handleSync(deviceID string) {
	if err := r.registry.PublishConfig(deviceID); err != nil {
		r.logger.Warn("Config sync failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

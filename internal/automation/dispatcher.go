// Package automation matches alerts against farm automation rules and
// executes their action lists. Rules are defined externally; the engine
// only matches and fires.
package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/mqtt"
	"cropwatch-engine/internal/notify"
	"cropwatch-engine/internal/repository"
)

// Result reports the outcome of one rule's execution.
type Result struct {
	RuleID string
	Err    error
}

// Dispatcher executes automation rules for alerts.
type Dispatcher struct {
	rules     repository.AutomationStore
	publisher mqtt.Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
}

// New creates a dispatcher.
func New(rules repository.AutomationStore, publisher mqtt.Publisher, notifier notify.Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		rules:     rules,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// Dispatch runs every enabled rule of the device's farm whose trigger
// matches the alert, in rule order. One rule failing never stops the
// remaining rules; each failure is reported in the result slice and
// logged.
func (d *Dispatcher) Dispatch(ctx context.Context, device models.Device, alert models.Alert) ([]Result, error) {
	rules, err := d.rules.ListEnabledRules(ctx, device.FarmID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation rules for farm %s: %w", device.FarmID, err)
	}

	var results []Result
	for _, rule := range rules {
		if !matches(rule.Trigger, alert) {
			continue
		}

		err := d.execute(ctx, device, alert, rule)
		if err != nil {
			d.logger.Error("Automation rule failed",
				zap.String("rule_id", rule.RuleID),
				zap.String("alert_id", alert.AlertID),
				zap.Error(err),
			)
		}
		results = append(results, Result{RuleID: rule.RuleID, Err: err})
	}

	return results, nil
}

func matches(trigger models.AutomationTrigger, alert models.Alert) bool {
	return trigger.Sensor == alert.Sensor && trigger.Severity == alert.Severity
}

// execute runs the rule's action list in order, stopping the rule at the
// first failing action.
func (d *Dispatcher) execute(ctx context.Context, device models.Device, alert models.Alert, rule models.AutomationRule) error {
	for i, action := range rule.Actions {
		if err := d.executeAction(ctx, device, alert, action); err != nil {
			return fmt.Errorf("action %d (%s) failed: %w", i, action.Type, err)
		}
	}
	return nil
}

func (d *Dispatcher) executeAction(ctx context.Context, device models.Device, alert models.Alert, action models.Action) error {
	switch action.Type {
	case models.ActionDeviceCommand:
		target := action.Target
		if target == "" {
			target = device.DeviceID
		}
		payload, err := json.Marshal(map[string]any{
			"command": action.Params["command"],
			"params":  action.Params,
			"alert":   alert.AlertID,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal command payload: %w", err)
		}
		topic := fmt.Sprintf("devices/%s/config", target)
		return d.publisher.Publish(topic, payload)

	case models.ActionNotify:
		title := action.Params["title"]
		if title == "" {
			title = fmt.Sprintf("Alert: %s on %s", alert.Sensor, device.DeviceID)
		}
		return d.notifier.SendNotification(ctx, device.FarmerRef,
			notify.Message{
				Title: title,
				Body:  alert.Message,
				Data: map[string]string{
					"device_id": device.DeviceID,
					"alert_id":  alert.AlertID,
					"severity":  string(alert.Severity),
				},
			},
			notify.Options{
				Channels: []string{"push"},
				Priority: string(alert.Severity),
			},
		)

	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// Package evaluator classifies processed readings into alerts: threshold
// breaches against the farm's configured bands and statistical anomalies
// flagged by edge analytics.
package evaluator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/repository"
)

// Evaluator turns processed readings into alerts.
type Evaluator struct {
	thresholds repository.ThresholdStore
	logger     *zap.Logger
}

// New creates an evaluator.
func New(thresholds repository.ThresholdStore, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		logger:     logger,
	}
}

// Evaluate checks every sensor of the reading. A sensor with no configured
// band skips breach checking silently; a threshold lookup failure degrades
// the same way but is logged. A single sensor may produce both a breach
// and an anomaly alert in one evaluation; no deduplication happens across
// consecutive readings.
func (e *Evaluator) Evaluate(ctx context.Context, device models.Device, reading *models.ProcessedReading) []models.Alert {
	var alerts []models.Alert

	for sensor, value := range reading.Sensors {
		band, err := e.thresholds.GetBand(ctx, device.FarmID, device.DeviceType, sensor)
		if err != nil {
			e.logger.Error("Threshold lookup failed, skipping breach check",
				zap.String("device_id", device.DeviceID),
				zap.String("sensor", sensor),
				zap.Error(err),
			)
		} else if band != nil {
			if alert := checkBreach(device, reading, sensor, value, band); alert != nil {
				alerts = append(alerts, *alert)
			}
		}

		if analysis, ok := reading.Analysis[sensor]; ok && analysis.Anomaly {
			alerts = append(alerts, models.Alert{
				AlertID:   uuid.NewString(),
				DeviceID:  device.DeviceID,
				FarmID:    device.FarmID,
				Kind:      models.AlertAnomaly,
				Severity:  models.SeverityMedium,
				Sensor:    sensor,
				Value:     value,
				Message:   fmt.Sprintf("Anomalous %s reading %.2f deviates more than 2 standard deviations from recent history", sensor, value),
				Timestamp: reading.Timestamp,
			})
		}
	}

	return alerts
}

func checkBreach(device models.Device, reading *models.ProcessedReading, sensor string, value float64, band *models.ThresholdBand) *models.Alert {
	var direction models.BreachDirection
	var bound float64

	switch {
	case value < band.Min:
		direction = models.BreachBelow
		bound = band.Min
	case value > band.Max:
		direction = models.BreachAbove
		bound = band.Max
	default:
		return nil
	}

	return &models.Alert{
		AlertID:   uuid.NewString(),
		DeviceID:  device.DeviceID,
		FarmID:    device.FarmID,
		Kind:      models.AlertThresholdBreach,
		Severity:  models.SeverityHigh,
		Sensor:    sensor,
		Value:     value,
		Threshold: &bound,
		Direction: direction,
		Message:   fmt.Sprintf("%s value %.2f is %s threshold %.2f", sensor, value, direction, bound),
		Timestamp: reading.Timestamp,
	}
}

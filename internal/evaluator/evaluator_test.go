package evaluator

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

type fakeThresholdStore struct {
	bands map[string]*models.ThresholdBand
	err   error
}

func (f *fakeThresholdStore) GetBand(_ context.Context, _ string, _ models.DeviceType, sensor string) (*models.ThresholdBand, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bands[sensor], nil
}

func testDevice() models.Device {
	return models.Device{
		DeviceID:   "dev-1",
		DeviceType: models.DeviceSoilMoisture,
		FarmID:     "farm-1",
		FarmerRef:  "farmer-1",
	}
}

func processedReading(sensor string, value float64, anomaly bool) *models.ProcessedReading {
	return &models.ProcessedReading{
		Reading: models.Reading{
			DeviceID:  "dev-1",
			Timestamp: time.Now(),
			Sensors:   map[string]float64{sensor: value},
		},
		Analysis: map[string]models.SensorAnalysis{
			sensor: {Anomaly: anomaly},
		},
	}
}

func TestEvaluate_BreachBelow(t *testing.T) {
	store := &fakeThresholdStore{bands: map[string]*models.ThresholdBand{
		"soil_moisture": {Min: 20, Max: 80},
	}}
	eval := New(store, zap.NewNop())

	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 15, false))

	require.Len(t, alerts, 1)
	alert := alerts[0]
	assert.Equal(t, models.AlertThresholdBreach, alert.Kind)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, models.BreachBelow, alert.Direction)
	require.NotNil(t, alert.Threshold)
	assert.Equal(t, 20.0, *alert.Threshold)
	assert.Equal(t, 15.0, alert.Value)
	assert.Contains(t, alert.Message, "soil_moisture")
	assert.Contains(t, alert.Message, "15.00")
	assert.Contains(t, alert.Message, "20.00")
}

func TestEvaluate_BreachAbove(t *testing.T) {
	store := &fakeThresholdStore{bands: map[string]*models.ThresholdBand{
		"temperature": {Min: 5, Max: 40},
	}}
	eval := New(store, zap.NewNop())

	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("temperature", 45, false))

	require.Len(t, alerts, 1)
	assert.Equal(t, models.BreachAbove, alerts[0].Direction)
	assert.Equal(t, 40.0, *alerts[0].Threshold)
}

func TestEvaluate_BoundaryValuesAreNotBreaches(t *testing.T) {
	store := &fakeThresholdStore{bands: map[string]*models.ThresholdBand{
		"soil_moisture": {Min: 20, Max: 80},
	}}
	eval := New(store, zap.NewNop())

	assert.Empty(t, eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 20, false)))
	assert.Empty(t, eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 80, false)))
}

func TestEvaluate_AnomalyAlert(t *testing.T) {
	store := &fakeThresholdStore{}
	eval := New(store, zap.NewNop())

	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 50, true))

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertAnomaly, alerts[0].Kind)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
	assert.Nil(t, alerts[0].Threshold)
}

func TestEvaluate_BreachAndAnomalyTogether(t *testing.T) {
	store := &fakeThresholdStore{bands: map[string]*models.ThresholdBand{
		"soil_moisture": {Min: 20, Max: 80},
	}}
	eval := New(store, zap.NewNop())

	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 90, true))

	require.Len(t, alerts, 2)
	kinds := []models.AlertKind{alerts[0].Kind, alerts[1].Kind}
	assert.Contains(t, kinds, models.AlertThresholdBreach)
	assert.Contains(t, kinds, models.AlertAnomaly)
}

func TestEvaluate_MissingThresholdSkipsBreachCheck(t *testing.T) {
	store := &fakeThresholdStore{}
	eval := New(store, zap.NewNop())

	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("ph", 2, false))

	assert.Empty(t, alerts)
}

func TestEvaluate_LookupFailureDegradesGracefully(t *testing.T) {
	store := &fakeThresholdStore{err: errors.New("store unavailable")}
	eval := New(store, zap.NewNop())

	// The breach check is skipped but the anomaly path still runs.
	alerts := eval.Evaluate(context.Background(), testDevice(), processedReading("soil_moisture", 15, true))

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertAnomaly, alerts[0].Kind)
}

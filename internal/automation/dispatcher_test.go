package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/notify"
)

type fakeRuleStore struct {
	rules []models.AutomationRule
	err   error
}

func (f *fakeRuleStore) ListEnabledRules(context.Context, string) ([]models.AutomationRule, error) {
	return f.rules, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakePublisher) Publish(topic string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notify.Message
	err   error
	calls int
}

func (f *fakeNotifier) SendNotification(_ context.Context, _ string, msg notify.Message, _ notify.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func highSoilAlert() models.Alert {
	return models.Alert{
		AlertID:  "alert-1",
		DeviceID: "dev-1",
		FarmID:   "farm-1",
		Kind:     models.AlertThresholdBreach,
		Severity: models.SeverityHigh,
		Sensor:   "soil_moisture",
		Value:    15,
		Message:  "soil_moisture value 15.00 is below threshold 20.00",
	}
}

func dispatchDevice() models.Device {
	return models.Device{DeviceID: "dev-1", FarmID: "farm-1", FarmerRef: "farmer-1"}
}

func commandRule(id string) models.AutomationRule {
	return models.AutomationRule{
		RuleID: id,
		FarmID: "farm-1",
		Trigger: models.AutomationTrigger{
			Sensor:   "soil_moisture",
			Severity: models.SeverityHigh,
		},
		Actions: []models.Action{
			{Type: models.ActionDeviceCommand, Target: "irrigator-1", Params: map[string]string{"command": "start"}},
		},
		Enabled: true,
	}
}

func TestDispatch_MatchingRuleExecutes(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := New(&fakeRuleStore{rules: []models.AutomationRule{commandRule("rule-1")}},
		publisher, &fakeNotifier{}, zap.NewNop())

	results, err := dispatcher.Dispatch(context.Background(), dispatchDevice(), highSoilAlert())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []string{"devices/irrigator-1/config"}, publisher.topics)
}

func TestDispatch_NonMatchingRuleSkipped(t *testing.T) {
	rule := commandRule("rule-1")
	rule.Trigger.Severity = models.SeverityLow

	publisher := &fakePublisher{}
	dispatcher := New(&fakeRuleStore{rules: []models.AutomationRule{rule}},
		publisher, &fakeNotifier{}, zap.NewNop())

	results, err := dispatcher.Dispatch(context.Background(), dispatchDevice(), highSoilAlert())

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, publisher.topics)
}

func TestDispatch_FailureDoesNotStopLaterRules(t *testing.T) {
	failing := commandRule("rule-1")
	notifying := models.AutomationRule{
		RuleID: "rule-2",
		FarmID: "farm-1",
		Trigger: models.AutomationTrigger{
			Sensor:   "soil_moisture",
			Severity: models.SeverityHigh,
		},
		Actions: []models.Action{{Type: models.ActionNotify}},
		Enabled: true,
	}

	publisher := &fakePublisher{err: errors.New("broker down")}
	notifier := &fakeNotifier{}
	dispatcher := New(&fakeRuleStore{rules: []models.AutomationRule{failing, notifying}},
		publisher, notifier, zap.NewNop())

	results, err := dispatcher.Dispatch(context.Background(), dispatchDevice(), highSoilAlert())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 1, notifier.calls)
}

func TestDispatch_NotifyActionContent(t *testing.T) {
	rule := models.AutomationRule{
		RuleID:  "rule-1",
		FarmID:  "farm-1",
		Trigger: models.AutomationTrigger{Sensor: "soil_moisture", Severity: models.SeverityHigh},
		Actions: []models.Action{{Type: models.ActionNotify}},
		Enabled: true,
	}

	notifier := &fakeNotifier{}
	dispatcher := New(&fakeRuleStore{rules: []models.AutomationRule{rule}},
		&fakePublisher{}, notifier, zap.NewNop())

	_, err := dispatcher.Dispatch(context.Background(), dispatchDevice(), highSoilAlert())

	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Title, "soil_moisture")
	assert.Equal(t, "dev-1", notifier.sent[0].Data["device_id"])
}

func TestDispatch_RuleLookupFailure(t *testing.T) {
	dispatcher := New(&fakeRuleStore{err: errors.New("store unavailable")},
		&fakePublisher{}, &fakeNotifier{}, zap.NewNop())

	_, err := dispatcher.Dispatch(context.Background(), dispatchDevice(), highSoilAlert())

	assert.Error(t, err)
}

package models

// ActionType enumerates the automation actions the engine can execute.
type ActionType string

const (
	ActionDeviceCommand ActionType = "device_command"
	ActionNotify        ActionType = "notify"
)

// Action is one step of an automation rule's action list.
type Action struct {
	Type   ActionType        `json:"type"`
	Target string            `json:"target,omitempty"` // device ID for device commands
	Params map[string]string `json:"params,omitempty"`
}

// AutomationTrigger is the predicate an alert must match.
type AutomationTrigger struct {
	Sensor   string        `json:"sensor"`
	Severity AlertSeverity `json:"severity"`
}

// AutomationRule is a farm-scoped trigger→actions binding. Defined and
// stored externally; the engine only matches and executes.
type AutomationRule struct {
	RuleID  string            `json:"rule_id"`
	FarmID  string            `json:"farm_id"`
	Name    string            `json:"name"`
	Trigger AutomationTrigger `json:"trigger"`
	Actions []Action          `json:"actions"`
	Enabled bool              `json:"enabled"`
}

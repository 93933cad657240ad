package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresAutomationsRepo implements AutomationStore over PostgreSQL.
type PostgresAutomationsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresAutomationsRepo(db *sql.DB, logger *zap.Logger) *PostgresAutomationsRepo {
	return &PostgresAutomationsRepo{db: db, logger: logger}
}

func (r *PostgresAutomationsRepo) ListEnabledRules(ctx context.Context, farmID string) ([]models.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, farm_id, name, trigger_sensor, trigger_severity, actions, enabled
		FROM automation_rules
		WHERE farm_id = $1 AND enabled = true
		ORDER BY created_at`,
		farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation rules for farm %s: %w", farmID, err)
	}
	defer rows.Close()

	var rules []models.AutomationRule
	for rows.Next() {
		var rule models.AutomationRule
		var actions []byte
		if err := rows.Scan(
			&rule.RuleID, &rule.FarmID, &rule.Name,
			&rule.Trigger.Sensor, &rule.Trigger.Severity,
			&actions, &rule.Enabled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan automation rule: %w", err)
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal actions for rule %s: %w", rule.RuleID, err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

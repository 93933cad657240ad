package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresAlertsRepo implements AlertStore over PostgreSQL.
type PostgresAlertsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresAlertsRepo(db *sql.DB, logger *zap.Logger) *PostgresAlertsRepo {
	return &PostgresAlertsRepo{db: db, logger: logger}
}

func (r *PostgresAlertsRepo) InsertAlert(ctx context.Context, alert *models.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (
			alert_id, device_id, farm_id, kind, severity,
			sensor, value, threshold, direction, message, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		alert.AlertID, alert.DeviceID, alert.FarmID, alert.Kind, alert.Severity,
		alert.Sensor, alert.Value, alert.Threshold, alert.Direction,
		alert.Message, alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", alert.AlertID, err)
	}

	return nil
}

func (r *PostgresAlertsRepo) CountAlerts(ctx context.Context, deviceID string, period models.ReportPeriod) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alerts
		WHERE device_id = $1 AND triggered_at >= $2 AND triggered_at < $3`,
		deviceID, period.Start, period.End,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts for device %s: %w", deviceID, err)
	}

	return count, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresOfflineEventsRepo implements OfflineEventStore over PostgreSQL.
type PostgresOfflineEventsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresOfflineEventsRepo(db *sql.DB, logger *zap.Logger) *PostgresOfflineEventsRepo {
	return &PostgresOfflineEventsRepo{db: db, logger: logger}
}

func (r *PostgresOfflineEventsRepo) InsertOfflineEvent(ctx context.Context, event *models.OfflineEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offline_events (device_id, farm_id, started_at, duration_minutes)
		VALUES ($1, $2, $3, $4)`,
		event.DeviceID, event.FarmID, event.StartedAt, event.DurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offline event for device %s: %w", event.DeviceID, err)
	}

	return nil
}

// CloseOfflineEvent sets the duration of the most recent open offline
// event for the device, called when the device recovers.
func (r *PostgresOfflineEventsRepo) CloseOfflineEvent(ctx context.Context, deviceID string, durationMinutes int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE offline_events SET duration_minutes = $1
		WHERE device_id = $2 AND duration_minutes IS NULL`,
		durationMinutes, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to close offline event for device %s: %w", deviceID, err)
	}

	return nil
}

func (r *PostgresOfflineEventsRepo) ListOfflineEvents(ctx context.Context, deviceID string, period models.ReportPeriod) ([]models.OfflineEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, farm_id, started_at, duration_minutes
		FROM offline_events
		WHERE device_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at`,
		deviceID, period.Start, period.End,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline events for device %s: %w", deviceID, err)
	}
	defer rows.Close()

	var events []models.OfflineEvent
	for rows.Next() {
		var event models.OfflineEvent
		if err := rows.Scan(&event.DeviceID, &event.FarmID, &event.StartedAt, &event.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan offline event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

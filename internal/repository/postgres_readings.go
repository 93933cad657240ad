package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresReadingsRepo implements ReadingStore over PostgreSQL.
type PostgresReadingsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresReadingsRepo(db *sql.DB, logger *zap.Logger) *PostgresReadingsRepo {
	return &PostgresReadingsRepo{db: db, logger: logger}
}

func (r *PostgresReadingsRepo) InsertReading(ctx context.Context, reading *models.Reading) error {
	sensors, err := json.Marshal(reading.Sensors)
	if err != nil {
		return fmt.Errorf("failed to marshal sensors: %w", err)
	}
	metadata, err := json.Marshal(reading.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO readings (device_id, recorded_at, sensors, metadata)
		VALUES ($1, $2, $3, $4)`,
		reading.DeviceID, reading.Timestamp, sensors, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading for device %s: %w", reading.DeviceID, err)
	}

	return nil
}

func (r *PostgresReadingsRepo) CountReadings(ctx context.Context, deviceID string, period models.ReportPeriod) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM readings
		WHERE device_id = $1 AND recorded_at >= $2 AND recorded_at < $3`,
		deviceID, period.Start, period.End,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings for device %s: %w", deviceID, err)
	}

	return count, nil
}

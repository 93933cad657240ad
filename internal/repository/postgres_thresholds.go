package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresThresholdsRepo implements ThresholdStore over PostgreSQL.
type PostgresThresholdsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresThresholdsRepo(db *sql.DB, logger *zap.Logger) *PostgresThresholdsRepo {
	return &PostgresThresholdsRepo{db: db, logger: logger}
}

// GetBand returns the threshold band for (farm, device type, sensor).
// A missing configuration is (nil, nil); only real store failures error.
func (r *PostgresThresholdsRepo) GetBand(ctx context.Context, farmID string, deviceType models.DeviceType, sensor string) (*models.ThresholdBand, error) {
	var band models.ThresholdBand
	err := r.db.QueryRowContext(ctx, `
		SELECT min_value, max_value FROM sensor_thresholds
		WHERE farm_id = $1 AND device_type = $2 AND sensor = $3`,
		farmID, deviceType, sensor,
	).Scan(&band.Min, &band.Max)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get threshold for %s/%s/%s: %w", farmID, deviceType, sensor, err)
	}

	return &band, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// PostgresDevicesRepo implements DeviceStore over PostgreSQL.
type PostgresDevicesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDevicesRepo(db *sql.DB, logger *zap.Logger) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db, logger: logger}
}

func (r *PostgresDevicesRepo) SaveDevice(ctx context.Context, device *models.Device) error {
	calibration, err := json.Marshal(device.Calibration)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}
	deviceConfig, err := json.Marshal(device.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal device config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (
			device_id, device_type, farm_id, farmer_ref,
			latitude, longitude, sensors, firmware_version,
			calibration, status, last_seen, battery, config,
			registered_at, last_maintenance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (device_id) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			farm_id = EXCLUDED.farm_id,
			farmer_ref = EXCLUDED.farmer_ref,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			sensors = EXCLUDED.sensors,
			firmware_version = EXCLUDED.firmware_version,
			calibration = EXCLUDED.calibration,
			status = EXCLUDED.status,
			last_seen = EXCLUDED.last_seen,
			battery = EXCLUDED.battery,
			config = EXCLUDED.config`,
		device.DeviceID, device.DeviceType, device.FarmID, device.FarmerRef,
		device.Location.Latitude, device.Location.Longitude,
		pq.Array(device.Sensors), device.FirmwareVersion,
		calibration, device.Status, device.LastSeen, device.Battery, deviceConfig,
		device.RegisteredAt, device.LastMaintenance,
	)
	if err != nil {
		return fmt.Errorf("failed to save device %s: %w", device.DeviceID, err)
	}

	return nil
}

func (r *PostgresDevicesRepo) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, device_type, farm_id, farmer_ref,
		       latitude, longitude, sensors, firmware_version,
		       calibration, status, last_seen, battery, config,
		       registered_at, last_maintenance
		FROM devices
		WHERE device_id = $1`,
		deviceID,
	)

	device, err := scanDevice(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, err)
	}

	return device, nil
}

func (r *PostgresDevicesRepo) UpdateDeviceStatus(ctx context.Context, deviceID string, status models.DeviceStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = $1 WHERE device_id = $2`,
		status, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device %s status: %w", deviceID, err)
	}

	return nil
}

func (r *PostgresDevicesRepo) ListDevicesByFarm(ctx context.Context, farmID string) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, device_type, farm_id, farmer_ref,
		       latitude, longitude, sensors, firmware_version,
		       calibration, status, last_seen, battery, config,
		       registered_at, last_maintenance
		FROM devices
		WHERE farm_id = $1
		ORDER BY device_id`,
		farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for farm %s: %w", farmID, err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *device)
	}

	return devices, rows.Err()
}

// ListDevices loads the whole fleet, used to warm the in-memory registry
// on startup.
func (r *PostgresDevicesRepo) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, device_type, farm_id, farmer_ref,
		       latitude, longitude, sensors, firmware_version,
		       calibration, status, last_seen, battery, config,
		       registered_at, last_maintenance
		FROM devices
		ORDER BY device_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *device)
	}

	return devices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var device models.Device
	var sensors pq.StringArray
	var calibration, deviceConfig []byte

	err := row.Scan(
		&device.DeviceID, &device.DeviceType, &device.FarmID, &device.FarmerRef,
		&device.Location.Latitude, &device.Location.Longitude,
		&sensors, &device.FirmwareVersion,
		&calibration, &device.Status, &device.LastSeen, &device.Battery, &deviceConfig,
		&device.RegisteredAt, &device.LastMaintenance,
	)
	if err != nil {
		return nil, err
	}

	device.Sensors = sensors
	if len(calibration) > 0 {
		if err := json.Unmarshal(calibration, &device.Calibration); err != nil {
			return nil, fmt.Errorf("failed to unmarshal calibration: %w", err)
		}
	}
	if len(deviceConfig) > 0 {
		if err := json.Unmarshal(deviceConfig, &device.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device config: %w", err)
		}
	}

	return &device, nil
}

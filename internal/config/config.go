package config

import (
	"fmt"
	"os"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection settings for the output streams.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// NotifyConfig holds the external notification service endpoint.
type NotifyConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// EngineConfig holds pipeline tuning knobs.
type EngineConfig struct {
	// HistoryWindow is the per-sensor rolling window size in samples.
	// 288 samples is 24 hours at the default 5-minute sampling interval.
	HistoryWindow int

	// InactivityTimeout marks a device offline when no data arrives for
	// this long. The sweeper owns the transition.
	InactivityTimeout time.Duration

	// SweepInterval is the maintenance sweeper tick.
	SweepInterval time.Duration

	// LowBatteryThreshold is the battery percentage below which the
	// sweeper raises a maintenance flag.
	LowBatteryThreshold int

	// DeviceQueueSize is the per-device work queue depth in the router.
	DeviceQueueSize int

	// Streams are the Redis Streams the engine publishes to.
	ReadingStream string
	AlertStream   string
}

// Config is the full engine configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Notify   NotifyConfig
	Engine   EngineConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "cropwatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "cropwatch-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))

	cfg.Notify.BaseURL = getEnv("NOTIFY_BASE_URL", "http://localhost:8090")
	cfg.Notify.APIKey = getEnv("NOTIFY_API_KEY", "")
	cfg.Notify.Timeout = time.Duration(getEnvInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second

	cfg.Engine.HistoryWindow = getEnvInt("ENGINE_HISTORY_WINDOW", 288)
	cfg.Engine.InactivityTimeout = time.Duration(getEnvInt("ENGINE_INACTIVITY_MINUTES", 30)) * time.Minute
	cfg.Engine.SweepInterval = time.Duration(getEnvInt("ENGINE_SWEEP_MINUTES", 5)) * time.Minute
	cfg.Engine.LowBatteryThreshold = getEnvInt("ENGINE_LOW_BATTERY", 20)
	cfg.Engine.DeviceQueueSize = getEnvInt("ENGINE_DEVICE_QUEUE_SIZE", 64)
	cfg.Engine.ReadingStream = getEnv("ENGINE_READING_STREAM", "readings:processed")
	cfg.Engine.AlertStream = getEnv("ENGINE_ALERT_STREAM", "alerts:events")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Engine.HistoryWindow <= 0 {
		return nil, fmt.Errorf("ENGINE_HISTORY_WINDOW must be positive, got %d", cfg.Engine.HistoryWindow)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}

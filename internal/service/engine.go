// Package service wires the engine's layers together and owns their
// lifecycle.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"cropwatch-engine/internal/automation"
	"cropwatch-engine/internal/config"
	"cropwatch-engine/internal/evaluator"
	"cropwatch-engine/internal/history"
	"cropwatch-engine/internal/models"
	"cropwatch-engine/internal/mqtt"
	"cropwatch-engine/internal/notify"
	"cropwatch-engine/internal/registry"
	"cropwatch-engine/internal/report"
	"cropwatch-engine/internal/repository"
	"cropwatch-engine/internal/router"
	"cropwatch-engine/internal/stream"
	"cropwatch-engine/internal/sweeper"
)

// Engine is the full stream-processing service.
type Engine struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	devicesRepo  *repository.PostgresDevicesRepo
	readingsRepo *repository.PostgresReadingsRepo
	alertsRepo   *repository.PostgresAlertsRepo
	offlineRepo  *repository.PostgresOfflineEventsRepo
	rulesRepo    *repository.PostgresAutomationsRepo
	bandsRepo    *repository.PostgresThresholdsRepo

	registry   *registry.Registry
	history    *history.Store
	evaluator  *evaluator.Evaluator
	dispatcher *automation.Dispatcher
	notifier   notify.Notifier
	streams    *stream.Publisher
	router     *router.Router
	sweeper    *sweeper.Sweeper
	reports    *report.Generator
}

// NewEngine connects the external systems and builds every layer.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	// 1. Database
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	// 4. Repository layer
	devicesRepo := repository.NewPostgresDevicesRepo(db, logger)
	readingsRepo := repository.NewPostgresReadingsRepo(db, logger)
	alertsRepo := repository.NewPostgresAlertsRepo(db, logger)
	offlineRepo := repository.NewPostgresOfflineEventsRepo(db, logger)
	rulesRepo := repository.NewPostgresAutomationsRepo(db, logger)
	bandsRepo := repository.NewPostgresThresholdsRepo(db, logger)

	// 5. Domain layer
	reg := registry.New(devicesRepo, mqttClient, logger)
	hist := history.NewStore(cfg.Engine.HistoryWindow)
	eval := evaluator.New(bandsRepo, logger)
	notifier := notify.NewHTTPNotifier(&cfg.Notify, logger)
	dispatcher := automation.New(rulesRepo, mqttClient, notifier, logger)
	streams := stream.NewPublisher(redisClient, cfg.Engine.ReadingStream, cfg.Engine.AlertStream, logger)
	reports := report.NewGenerator(readingsRepo, alertsRepo, offlineRepo, logger)

	// 6. Pipeline
	rtr := router.New(
		mqttClient,
		reg,
		hist,
		eval,
		dispatcher,
		readingsRepo,
		alertsRepo,
		offlineRepo,
		streams,
		notifier,
		cfg.Engine.DeviceQueueSize,
		logger,
	)

	swp := sweeper.New(
		reg,
		rtr,
		offlineRepo,
		notifier,
		cfg.Engine.SweepInterval,
		cfg.Engine.InactivityTimeout,
		cfg.Engine.LowBatteryThreshold,
		logger,
	)

	return &Engine{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		logger:       logger,
		devicesRepo:  devicesRepo,
		readingsRepo: readingsRepo,
		alertsRepo:   alertsRepo,
		offlineRepo:  offlineRepo,
		rulesRepo:    rulesRepo,
		bandsRepo:    bandsRepo,
		registry:     reg,
		history:      hist,
		evaluator:    eval,
		dispatcher:   dispatcher,
		notifier:     notifier,
		streams:      streams,
		router:       rtr,
		sweeper:      swp,
		reports:      reports,
	}, nil
}

// Start warms the registry from the store and starts the router and
// sweeper.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting engine",
		zap.String("mqtt_broker", e.config.MQTT.Broker),
	)

	devices, err := e.devicesRepo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}
	e.registry.Load(devices)
	e.logger.Info("Registry warmed",
		zap.Int("devices", len(devices)),
	)

	if err := e.router.Start(ctx); err != nil {
		return fmt.Errorf("failed to start router: %w", err)
	}

	e.sweeper.Start(ctx)

	return nil
}

// Stop shuts the pipeline down in reverse order: stop accepting work,
// drain device queues, then close the external connections.
func (e *Engine) Stop() error {
	e.logger.Info("Stopping engine")

	e.sweeper.Stop()
	e.router.Stop()
	e.mqttClient.Disconnect()

	if err := e.db.Close(); err != nil {
		e.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := e.redisClient.Close(); err != nil {
		e.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// DeviceReport builds the performance summary for one device. The device
// is resolved from the live registry first, falling back to the store.
func (e *Engine) DeviceReport(ctx context.Context, deviceID string, period models.ReportPeriod) (*models.DeviceReport, error) {
	device, ok := e.registry.Get(deviceID)
	if !ok {
		stored, err := e.devicesRepo.GetDevice(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load device %s: %w", deviceID, err)
		}
		if stored == nil {
			return nil, fmt.Errorf("unknown device %s", deviceID)
		}
		device = *stored
	}

	return e.reports.DeviceReport(ctx, device, period)
}

// FarmInsights builds the fleet summary for one farm.
func (e *Engine) FarmInsights(ctx context.Context, farmID string, period models.ReportPeriod) (*models.FarmInsights, error) {
	devices, err := e.devicesRepo.ListDevicesByFarm(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for farm %s: %w", farmID, err)
	}

	return e.reports.FarmInsights(ctx, farmID, devices, period)
}

// Package stream publishes processed readings and alerts to Redis Streams.
// The streams are the engine's explicit output channel: dashboards and the
// notification pipeline consume them, the engine never calls those
// consumers directly.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"cropwatch-engine/internal/models"
)

// Publisher writes engine output to Redis Streams via XADD.
type Publisher struct {
	redisClient   *redis.Client
	readingStream string
	alertStream   string
	logger        *zap.Logger
}

// NewPublisher creates a publisher for the configured streams.
func NewPublisher(redisClient *redis.Client, readingStream, alertStream string, logger *zap.Logger) *Publisher {
	return &Publisher{
		redisClient:   redisClient,
		readingStream: readingStream,
		alertStream:   alertStream,
		logger:        logger,
	}
}

// PublishReading emits a processed reading to the reading stream.
func (p *Publisher) PublishReading(ctx context.Context, reading *models.ProcessedReading) (string, error) {
	return p.publishJSON(ctx, p.readingStream, reading)
}

// PublishAlert emits an alert to the alert stream.
func (p *Publisher) PublishAlert(ctx context.Context, alert *models.Alert) (string, error) {
	return p.publishJSON(ctx, p.alertStream, alert)
}

func (p *Publisher) publishJSON(ctx context.Context, stream string, data any) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	id, err := p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}

	p.logger.Debug("Published to stream",
		zap.String("stream", stream),
		zap.String("stream_id", id),
	)

	return id, nil
}

// Package notify is the client for the external notification collaborator.
// Delivery across channels (push/SMS/voice) happens there; this engine
// fire-and-reports.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"cropwatch-engine/internal/config"
)

// Message is the notification content.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Options select delivery channels and priority.
type Options struct {
	Channels []string `json:"channels,omitempty"`
	Priority string   `json:"priority,omitempty"`
}

// Notifier sends notifications to a farmer. Implementations must be safe
// for concurrent use.
type Notifier interface {
	SendNotification(ctx context.Context, farmerRef string, msg Message, opts Options) error
}

// HTTPNotifier posts notification requests to the notification service.
type HTTPNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPNotifier creates a notifier for the configured endpoint.
func NewHTTPNotifier(cfg *config.NotifyConfig, logger *zap.Logger) *HTTPNotifier {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &HTTPNotifier{
		httpClient: client,
		logger:     logger,
	}
}

type notificationRequest struct {
	FarmerRef string  `json:"farmer_ref"`
	Message   Message `json:"message"`
	Options   Options `json:"options"`
}

// SendNotification posts the request. Failures are returned for the caller
// to log; they never block alert processing.
func (n *HTTPNotifier) SendNotification(ctx context.Context, farmerRef string, msg Message, opts Options) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(notificationRequest{
			FarmerRef: farmerRef,
			Message:   msg,
			Options:   opts,
		}).
		Post("/notifications")
	if err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", farmerRef, err)
	}

	if resp.IsError() {
		return fmt.Errorf("notification service returned %d for %s", resp.StatusCode(), farmerRef)
	}

	n.logger.Debug("Notification sent",
		zap.String("farmer_ref", farmerRef),
		zap.String("title", msg.Title),
	)

	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cropwatch-engine/internal/config"
)

func TestSendNotification_Success(t *testing.T) {
	var received notificationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/notifications", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(&config.NotifyConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())

	err := notifier.SendNotification(context.Background(), "farmer-1",
		Message{Title: "Device offline", Body: "soil probe dev-1 is offline"},
		Options{Channels: []string{"push"}, Priority: "high"},
	)

	require.NoError(t, err)
	assert.Equal(t, "farmer-1", received.FarmerRef)
	assert.Equal(t, "Device offline", received.Message.Title)
	assert.Equal(t, []string{"push"}, received.Options.Channels)
}

func TestSendNotification_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewHTTPNotifier(&config.NotifyConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())

	err := notifier.SendNotification(context.Background(), "farmer-1", Message{Title: "x"}, Options{})

	assert.Error(t, err)
}

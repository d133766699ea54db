package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ipwatch/internal/config"
	"ipwatch/internal/version"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerEvent     = "X-IPWatch-Event"
	headerDelivery  = "X-IPWatch-Delivery"
	headerSignature = "X-IPWatch-Signature"
)

// WebhookNotifier represents webhook notifier
type WebhookNotifier struct {
	config *config.WebhookConfig
	logger *zap.Logger
	client *http.Client
}

// WebhookPayload represents the webhook payload structure
type WebhookPayload struct {
	EventType string      `json:"event_type"`
	EventID   string      `json:"event_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      WebhookData `json:"data"`
}

// WebhookData carries the reported address
type WebhookData struct {
	Address    string    `json:"address"`
	Previous   string    `json:"previous,omitempty"`
	Version    string    `json:"version"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewWebhookNotifier creates new webhook notifier
func NewWebhookNotifier(cfg *config.WebhookConfig, logger *zap.Logger) (*WebhookNotifier, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("webhook notifier is disabled")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  true,
			MaxIdleConnsPerHost: 2,
		},
	}

	return &WebhookNotifier{
		config: cfg,
		logger: logger,
		client: client,
	}, nil
}

// Notify posts one JSON payload; any non-2xx response is a failure
func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	payload := WebhookPayload{
		EventType: msg.EventType(),
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Data: WebhookData{
			Address:    msg.Observation.Address.String(),
			Version:    msg.Observation.Version(),
			ObservedAt: msg.Observation.ObservedAt,
		},
	}
	if !msg.First && msg.Previous.IsValid() {
		payload.Data.Previous = msg.Previous.String()
	}

	return n.sendWebhook(ctx, payload)
}

// sendWebhook sends a webhook
func (n *WebhookNotifier) sendWebhook(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	req.Header.Set(headerEvent, payload.EventType)
	req.Header.Set(headerDelivery, payload.EventID)

	if n.config.Secret != "" {
		req.Header.Set(headerSignature, "sha256="+calculateSignature(data, []byte(n.config.Secret)))
	}

	// Add custom headers from config
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_, _ = io.Copy(io.Discard, io.LimitReader(Body, 4096))
		if err := Body.Close(); err != nil {
			n.logger.Error("Failed to close response body", zap.Error(err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	n.logger.Debug("Webhook delivered",
		zap.String("event_type", payload.EventType),
		zap.String("event_id", payload.EventID))
	return nil
}

// calculateSignature returns the hex HMAC-SHA256 of payload
func calculateSignature(payload []byte, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

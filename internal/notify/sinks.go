package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"
)

type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	s.logger.InfoContext(ctx, "notification", "topic", n.Topic, "message_id", n.ID, "payload", string(n.Payload))
	return nil
}

// WebhookSink POSTs each notification as JSON, throttled by a token bucket.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type webhookBody struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	PublishedAt string          `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

func NewWebhookSink(url string, perSecond float64, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &WebhookSink{
		url:     url,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, n Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := sonic.Marshal(webhookBody{
		ID:          n.ID,
		Topic:       n.Topic,
		PublishedAt: n.PublishedAt,
		Payload:     json.RawMessage(n.Payload),
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", n.Topic)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

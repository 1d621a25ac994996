package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Message is one notification addressed to a user, or to an email address
// for people who are not users yet.
type Message struct {
	ID       string         `json:"id"`
	UserID   int64          `json:"user_id,omitempty"`
	Email    string         `json:"email,omitempty"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Sink delivers messages. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes messages to the log. It is the default when no webhook is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		"message_id", msg.ID,
		"user_id", msg.UserID,
		"email", msg.Email,
		"template", msg.Template,
		"data", msg.Data)
	return nil
}

type WebhookConfig struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// WebhookSink POSTs messages as JSON to an external mailer, rate limited.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewWebhookSink(cfg WebhookConfig, logger *slog.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &WebhookSink{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (s *WebhookSink) Notify(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", msg.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	s.logger.Debug("notification delivered",
		"message_id", msg.ID,
		"template", msg.Template,
		"status_code", resp.StatusCode)
	return nil
}

// StatusError is a non-2xx webhook response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.StatusCode)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

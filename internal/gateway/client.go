// Package gateway HTTP-клиент внешнего платёжного шлюза: checkout-сессии и отмена с возвратом.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/payment"
)

const (
	sessionsPath = "/v1/checkout/sessions"
	cancelPath   = "/v1/bookings/cancel"

	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 200 * time.Millisecond
)

// ErrRejected шлюз отклонил запрос (4xx), повтор не поможет
var ErrRejected = errors.New("request rejected by gateway")

// Config настройки клиента
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
}

// Client клиент платёжного шлюза
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration
	logger     *zap.Logger
}

// NewClient создаёт клиент
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     logger,
	}
}

type sessionBody struct {
	Snapshot     payment.Snapshot `json:"snapshot"`
	PriorSession string           `json:"prior_session,omitempty"`
	Update       bool             `json:"update"`
}

// CreateSession создаёт checkout-сессию или заменяет прежнюю, если передана PriorSession
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	body := sessionBody{
		Snapshot:     req.Snapshot,
		PriorSession: req.PriorSession,
		Update:       req.PriorSession != "",
	}

	var session payment.Session
	if err := c.post(ctx, sessionsPath, body, &session); err != nil {
		return payment.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// CancelRequest запрос на отмену. Amount пустой для отмены без возврата.
type CancelRequest struct {
	BookingID int64    `json:"booking_id"`
	ChargeID  string   `json:"charge_id,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
}

// CancelResult ответ шлюза на отмену
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CancelBooking отменяет бронирование и при наличии суммы инициирует возврат
func (c *Client) CancelBooking(ctx context.Context, req CancelRequest) (CancelResult, error) {
	var result CancelResult
	if err := c.post(ctx, cancelPath, req, &result); err != nil {
		return CancelResult{}, fmt.Errorf("cancel booking: %w", err)
	}
	return result, nil
}

// post отправляет JSON и повторяет запрос при сетевых ошибках и 5xx.
// Ключ идемпотентности общий для всех попыток одного вызова.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	idempotencyKey := uuid.NewString()
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("Gateway request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}

		switch {
		case resp.StatusCode >= 500:
			c.logger.Warn("Gateway server error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
			return retry.RetryableError(fmt.Errorf("gateway status %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

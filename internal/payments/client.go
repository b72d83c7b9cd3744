package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
)

var (
	ErrNotConfigured = errors.New("payment access token is not configured")
	// ErrRateLimited marks the one transient fetch failure that is retried.
	ErrRateLimited = errors.New("payment provider rate limited the request")
)

type Config struct {
	BaseURL      string
	AccessToken  string
	FetchRetries int
	FetchBackoff time.Duration
	Timeout      time.Duration
}

// Client talks to the payment provider's REST API. GetPayment retries only
// on rate-limit responses, bounded and with exponential backoff; every other
// failure likely indicates a permanent condition and is surfaced immediately.
type Client struct {
	http         *resty.Client
	fetchRetries int
	fetchBackoff time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 3
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{
		http:         http,
		fetchRetries: cfg.FetchRetries,
		fetchBackoff: cfg.FetchBackoff,
	}, nil
}

// CreatePreference creates a hosted-checkout preference. The idempotency key
// protects against duplicate preference creation on client retry.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest, idempotencyKey string) (*Preference, error) {
	var pref Preference

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", idempotencyKey).
		SetBody(req).
		SetResult(&pref).
		Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create preference: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	logger.Info("payment preference created", "preference_id", pref.ID)

	return &pref, nil
}

// GetPayment fetches the authoritative payment detail by id. Attempted at
// most fetchRetries times total; only 429 responses are retried.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var lastErr error

	for attempt := 1; attempt <= c.fetchRetries; attempt++ {
		if attempt > 1 {
			backoff := c.fetchBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var payment Payment
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&payment).
			Get("/v1/payments/" + paymentID)
		if err != nil {
			prom.IncCounterVec(prom.SystemWebhook, prom.MetricPaymentFetchAttempts, "error")
			return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
		}

		if resp.StatusCode() == 429 {
			prom.IncCounterVec(prom.SystemWebhook, prom.MetricPaymentFetchAttempts, "rate_limited")
			logger.Warn("payment fetch rate limited, backing off",
				"payment_id", paymentID,
				"attempt", attempt,
				"max_attempts", c.fetchRetries)
			lastErr = ErrRateLimited
			continue
		}

		if resp.IsError() {
			prom.IncCounterVec(prom.SystemWebhook, prom.MetricPaymentFetchAttempts, "error")
			return nil, fmt.Errorf("fetch payment %s: unexpected status %d", paymentID, resp.StatusCode())
		}

		prom.IncCounterVec(prom.SystemWebhook, prom.MetricPaymentFetchAttempts, "ok")
		return &payment, nil
	}

	return nil, fmt.Errorf("fetch payment %s: gave up after %d attempts: %w", paymentID, c.fetchRetries, lastErr)
}

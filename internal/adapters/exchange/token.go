package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ohlcvflow/internal/core/domain"

	"github.com/go-resty/resty/v2"
)

const (
	KuCoinAPIURL     = "https://api.kucoin.com"
	kuCoinBulletPath = "/api/v1/bullet-public"
	kuCoinOKCode     = "200000"
)

// Token is a short-lived stream credential.
type Token struct {
	Value        string
	Endpoint     string
	PingInterval time.Duration
	AcquiredAt   time.Time
}

func (t *Token) Expired(ttl time.Duration, now time.Time) bool {
	if t == nil {
		return true
	}
	return ttl > 0 && now.Sub(t.AcquiredAt) >= ttl
}

// Authenticator acquires a token before a connection attempt.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Token, error)
}

type bulletResponse struct {
	Code string `json:"code"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint     string `json:"endpoint"`
			PingInterval int64  `json:"pingInterval"`
		} `json:"instanceServers"`
	} `json:"data"`
}

// KuCoinTokenClient requests public bullet tokens, retrying a bounded number
// of times with a fixed delay.
type KuCoinTokenClient struct {
	client     *resty.Client
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewKuCoinTokenClient(baseURL string, attempts int, retryDelay time.Duration, logger *slog.Logger) *KuCoinTokenClient {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &KuCoinTokenClient{
		client:     resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (c *KuCoinTokenClient) Authenticate(ctx context.Context) (*Token, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		token, err := c.fetch(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err

		c.logger.Warn("failed to get kucoin token",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.attempts),
			slog.Any("error", err))

		if attempt == c.attempts {
			break
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", domain.ErrAuthExhausted, c.attempts, lastErr)
}

func (c *KuCoinTokenClient) fetch(ctx context.Context) (*Token, error) {
	var out bulletResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Post(kuCoinBulletPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bullet-public: status %d", resp.StatusCode())
	}
	if out.Code != kuCoinOKCode {
		return nil, fmt.Errorf("bullet-public: code %s", out.Code)
	}
	if out.Data.Token == "" || len(out.Data.InstanceServers) == 0 {
		return nil, errors.New("bullet-public: empty token or instance servers")
	}

	server := out.Data.InstanceServers[0]
	return &Token{
		Value:        out.Data.Token,
		Endpoint:     server.Endpoint,
		PingInterval: time.Duration(server.PingInterval) * time.Millisecond,
		AcquiredAt:   time.Now(),
	}, nil
}

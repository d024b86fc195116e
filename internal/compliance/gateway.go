package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const checkPath = "/v1/compliance/check"

type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RateLimit      float64
	BurstLimit     int
	MaxRetries     int
	RetryInterval  time.Duration
	CircuitBreaker *CircuitBreakerConfig
}

type CircuitBreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// Gateway calls the external compliance decision service. Check never
// returns an error: every failure path degrades to InvalidVerdict so the
// orchestrator always has a verdict to act on.
type Gateway struct {
	client         *http.Client
	baseURL        string
	apiKey         string
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	maxRetries     int
	retryInterval  time.Duration
	logger         *zap.SugaredLogger
}

func NewGateway(config *Config, logger *zap.SugaredLogger) *Gateway {
	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
		},
	}

	cbSettings := gobreaker.Settings{
		Name:        "compliance-gateway",
		MaxRequests: config.CircuitBreaker.MaxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.Timeout,
		ReadyToTrip: config.CircuitBreaker.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Infow("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	if cbSettings.ReadyToTrip == nil {
		cbSettings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}

	return &Gateway{
		client:         client,
		baseURL:        config.BaseURL,
		apiKey:         config.APIKey,
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.BurstLimit),
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		maxRetries:     config.MaxRetries,
		retryInterval:  config.RetryInterval,
		logger:         logger,
	}
}

// Check scores a single review. On any transport, breaker or decode
// failure it returns the synthetic invalid verdict carrying the reason.
func (g *Gateway) Check(ctx context.Context, req CheckRequest) Verdict {
	var verdict Verdict
	err := g.makeRequest(ctx, http.MethodPost, g.baseURL+checkPath, req, &verdict)
	if err != nil {
		g.logger.Warnw("compliance check degraded to default verdict",
			"review_id", req.ReviewID,
			"error", err)
		return InvalidVerdict(fmt.Sprintf("compliance service unavailable: %v", err))
	}
	return verdict
}

func (g *Gateway) makeRequest(ctx context.Context, method, url string, body, response any) error {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := g.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, g.doRequestWithRetry(ctx, method, url, body, response)
	})
	return err
}

func (g *Gateway) doRequestWithRetry(ctx context.Context, method, url string, body, response any) error {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.backoffDelay(attempt)):
			}
		}

		retryable, err := g.doRequest(ctx, method, url, body, response)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", g.maxRetries+1, lastErr)
}

func (g *Gateway) doRequest(ctx context.Context, method, url string, body, response any) (retryable bool, err error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return isRetryableStatus(resp.StatusCode),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (g *Gateway) backoffDelay(attempt int) time.Duration {
	delay := g.retryInterval * time.Duration(1<<uint(attempt-1))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

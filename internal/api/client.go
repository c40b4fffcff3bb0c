// Package api is the HTTP client for the IronShield challenge API: it requests
// challenges for protected endpoints and exchanges solutions for tokens.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/pkg/circuit"
	"github.com/bardlex/ironshield/pkg/errors"
	"github.com/bardlex/ironshield/pkg/log"
	"github.com/bardlex/ironshield/pkg/retry"
)

const (
	requestPath  = "/request"
	responsePath = "/response"

	// maxBodySize bounds how much of a reply is read
	maxBodySize = 1 << 20
)

// Config configures a Client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Retry      *retry.Config
	Breaker    *circuit.Config
}

// Client talks to the IronShield API.
// Calls go through a circuit breaker and are retried with backoff on
// network failures and 5xx replies. Only those retryable failures count
// toward opening the breaker.
type Client struct {
	baseURL        string
	userAgent      string
	http           *http.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
	logger         *log.Logger
	now            func() time.Time
}

// NewClient creates an API client
func NewClient(cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent("api")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	retryConfig := retry.NetworkConfig()
	if cfg.Retry != nil {
		rc := *cfg.Retry
		retryConfig = &rc
	}
	if retryConfig.OnRetry == nil {
		retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.WithError(err).Warn("retrying api call", "attempt", attempt, "delay_ms", delay.Milliseconds())
		}
	}

	breakerConfig := circuit.Config{
		Name:            "ironshield-api",
		MaxFailures:     3,
		SuccessRequired: 1,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}
	if cfg.Breaker != nil {
		breakerConfig = *cfg.Breaker
	}
	// Rejections (4xx, failed envelopes) mean the API is up and answering.
	if breakerConfig.IsFailure == nil {
		breakerConfig.IsFailure = errors.IsRetryable
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:      cfg.UserAgent,
		http:           httpClient,
		circuitBreaker: circuit.New(&breakerConfig),
		retryConfig:    retryConfig,
		logger:         logger,
		now:            time.Now,
	}
}

// FetchChallenge requests a challenge guarding endpoint
func (c *Client) FetchChallenge(ctx context.Context, endpoint string) (*challenge.Challenge, error) {
	req := challenge.NewRequest(endpoint, c.now())

	resp, err := c.post(ctx, "fetch_challenge", requestPath, req, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("challenge received", "endpoint", endpoint, "message", resp.Message)

	return resp.ExtractChallenge()
}

// SubmitSolution exchanges a solved challenge for an access token. The
// solution travels both as the JSON body and base64url-encoded in the
// X-Ironshield-Challenge-Response header.
func (c *Client) SubmitSolution(ctx context.Context, sol *challenge.Solution) (*challenge.Token, error) {
	header, err := sol.ToHeader()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "submit_solution", "failed to encode solution")
	}

	resp, err := c.post(ctx, "submit_solution", responsePath, sol, map[string]string{
		challenge.HeaderName: header,
	})
	if err != nil {
		return nil, err
	}

	return resp.ExtractToken()
}

// CircuitState reports the state of the API circuit breaker
func (c *Client) CircuitState() circuit.State {
	return c.circuitBreaker.GetState()
}

// CircuitStats reports the API circuit breaker counters
func (c *Client) CircuitStats() circuit.Stats {
	return c.circuitBreaker.GetStats()
}

func (c *Client) post(ctx context.Context, operation, path string, payload any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, operation, "failed to encode request")
	}

	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*Response, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*Response, error) {
			return c.roundTrip(ctx, operation, path, body, headers)
		})
	})
}

func (c *Client) roundTrip(ctx context.Context, operation, path string, body []byte, headers map[string]string) (*Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, operation, "failed to build request").
			WithContext("url", url)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		se := errors.Wrap(err, errors.ErrorTypeNetwork, operation, "request failed").WithContext("url", url)
		se.Retryable = ctx.Err() == nil
		return nil, se
	}
	defer func() { _ = httpResp.Body.Close() }()
	c.logger.LogRequest(http.MethodPost, url, httpResp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, operation, "failed to read response").
			WithContext("url", url)
	}

	if httpResp.StatusCode >= 300 {
		return nil, statusError(operation, url, httpResp.StatusCode, data)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, operation, "invalid response body").
			WithContext("url", url)
	}

	return &resp, nil
}

// statusError classifies a non-2xx reply: 429 and 5xx are retryable
func statusError(operation, url string, status int, body []byte) error {
	errType := errors.ErrorTypeValidation
	if status == http.StatusTooManyRequests || status >= 500 {
		errType = errors.ErrorTypeNetwork
	}

	se := errors.New(errType, operation, fmt.Sprintf("api request failed with status %d", status)).
		WithContext("url", url).
		WithContext("status", status)

	var envelope Response
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		se = se.WithContext("message", envelope.Message)
	}
	return se
}

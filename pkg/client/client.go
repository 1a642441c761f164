// Package client provides the Discord REST client with rate limiting,
// retries and error classification.
package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// Prometheus metrics for Discord client operations.
var (
	discordRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discord_requests_total",
		Help: "Total Discord API requests by route and status",
	}, []string{"route", "status"})

	discordRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discord_request_duration_seconds",
		Help:    "Discord API request duration in seconds by route",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"route"})

	discordErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discord_errors_total",
		Help: "Total Discord API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the Discord REST client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Token is the bot token, sent as "Authorization: Bot <token>".
	Token string

	// BaseURL is the API root (default DefaultBaseURL).
	BaseURL string

	// UserAgent header. Discord expects "DiscordBot (url, version)".
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// RateLimitStore holds bucket state. Nil keeps it in memory.
	RateLimitStore ratelimit.Store

	// AuditLogReason is sent as X-Audit-Log-Reason on remove-ban requests.
	AuditLogReason string

	// Retry (GET requests only)
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token string) Config {
	return Config{
		Token:          token,
		BaseURL:        DefaultBaseURL,
		UserAgent:      "DiscordBot (https://github.com/Sternrassler/guild-unban, 0.1.0)",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
	}
}

// New creates a new Discord client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}

	logger := log.With().Str("component", "discord-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.RateLimitStore, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs an HTTP request with rate limiting, retries and error
// classification. route is the templated path used for metrics and rate
// limit buckets, e.g. "GET /guilds/{guild}/bans". Any status >= 400 is
// returned as *APIError. Only GET requests are retried.
func (c *Client) Do(req *http.Request, route string) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		discordRequestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.rateLimiter.Wait(ctx, route); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.config.Token)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	retry := DefaultRetryConfig()
	retry.InitialBackoff = c.config.InitialBackoff
	retry.MaxAttempts = 1
	if req.Method == http.MethodGet {
		retry.MaxAttempts = c.config.MaxRetries + 1
	}

	c.logger.Debug().
		Str("route", route).
		Str("method", req.Method).
		Msg("Executing Discord request")

	var resp *http.Response
	err := retryWithBackoff(ctx, retry, func() (ErrorClass, error) {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		if reqErr != nil {
			errClass := c.classifyError(nil, reqErr)
			discordErrorsTotal.WithLabelValues(string(errClass)).Inc()
			discordRequestsTotal.WithLabelValues(route, "network_error").Inc()
			c.logger.Error().Err(reqErr).Str("route", route).Msg("HTTP request failed")
			return errClass, reqErr
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, route, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		discordRequestsTotal.WithLabelValues(route, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode < 400 {
			return "", nil
		}

		errClass := c.classifyError(resp, nil)
		discordErrorsTotal.WithLabelValues(string(errClass)).Inc()

		apiErr := newAPIError(resp, errClass)
		resp.Body.Close()
		resp = nil

		if errClass == ErrorClassRateLimit {
			if err := c.rateLimiter.Block(ctx, route, apiErr.Global, apiErr.RetryAfter); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record rate limit")
			}
		}

		c.logger.Warn().
			Str("route", route).
			Int("status", apiErr.StatusCode).
			Int("code", apiErr.Code).
			Str("error_class", string(errClass)).
			Msg("Discord request error")

		return errClass, apiErr
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the rate limit tracker (for testing).
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	discordRateLimitRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "discord_rate_limit_remaining",
		Help: "Requests remaining in the current Discord rate limit window by route",
	}, []string{"route"})

	discordRateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discord_rate_limit_waits_total",
		Help: "Total number of requests delayed until a rate limit reset",
	}, []string{"scope"})

	discordRateLimitHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discord_rate_limit_hits_total",
		Help: "Total number of 429 responses recorded",
	}, []string{"scope"})
)

// Tracker monitors Discord rate limits and gates requests.
type Tracker struct {
	store  Store
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker. A nil store falls back to
// process memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// GetState returns the stored state for key, or nil if none is known.
func (t *Tracker) GetState(ctx context.Context, key string) (*State, error) {
	state, err := t.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get rate limit state %q: %w", key, err)
	}
	return state, nil
}

// UpdateFromHeaders parses Discord rate limit headers for route and stores
// the resulting state. Responses without rate limit headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, route string, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderResetAfter)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderResetAfter)
	}

	resetAfter, err := parseSeconds(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderResetAfter, err)
	}

	now := time.Now()
	state := &State{
		Bucket:     headers.Get(HeaderBucket),
		Remaining:  remain,
		ResetAt:    now.Add(resetAfter),
		LastUpdate: now,
	}

	if err := t.store.Set(ctx, route, state); err != nil {
		return err
	}

	discordRateLimitRemaining.WithLabelValues(route).Set(float64(remain))

	t.logger.Debug().
		Str("route", route).
		Str("bucket", state.Bucket).
		Int("remaining", remain).
		Dur("reset_after", resetAfter).
		Msg("Rate limit state updated")

	return nil
}

// Block records a 429 response. Global limits block every route.
func (t *Tracker) Block(ctx context.Context, route string, global bool, retryAfter time.Duration) error {
	key, scope := route, "route"
	if global {
		key, scope = GlobalKey, "global"
	}

	now := time.Now()
	state := &State{
		Remaining:  0,
		ResetAt:    now.Add(retryAfter),
		LastUpdate: now,
	}
	if err := t.store.Set(ctx, key, state); err != nil {
		return err
	}

	discordRateLimitHitsTotal.WithLabelValues(scope).Inc()

	t.logger.Warn().
		Str("route", route).
		Bool("global", global).
		Dur("retry_after", retryAfter).
		Msg("Discord rate limit hit")

	return nil
}

// Wait blocks until neither the global limit nor the route's bucket is
// exhausted, or ctx is done.
func (t *Tracker) Wait(ctx context.Context, route string) error {
	for _, key := range []string{GlobalKey, route} {
		state, err := t.GetState(ctx, key)
		if err != nil {
			return err
		}
		if state == nil || !state.ShouldWait() {
			continue
		}

		wait := state.TimeUntilReset()
		scope := "route"
		if key == GlobalKey {
			scope = "global"
		}
		discordRateLimitWaitsTotal.WithLabelValues(scope).Inc()

		t.logger.Warn().
			Str("route", route).
			Str("scope", scope).
			Dur("wait_duration", wait).
			Msg("Rate limit exhausted - waiting for reset")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// ParseRetryAfter converts a Retry-After style value (seconds, possibly
// fractional) to a duration. Empty or invalid values yield 0.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := parseSeconds(value)
	if err != nil {
		return 0
	}
	return d
}

func parseSeconds(value string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

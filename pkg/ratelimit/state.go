// Package ratelimit implements Discord rate limit tracking and request gating.
// It monitors the X-RateLimit-Remaining and X-RateLimit-Reset-After headers
// and the 429 responses Discord sends once a bucket is exhausted, so callers
// wait for the reset instead of burning requests into a rejection.
package ratelimit

import (
	"time"
)

// Header names used by Discord to report bucket state.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderBucket     = "X-RateLimit-Bucket"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderRetryAfter = "Retry-After"
)

// GlobalKey is the state key for the account-wide limit reported with
// X-RateLimit-Global on a 429.
const GlobalKey = "global"

// State represents the last known rate limit state of one route (or the
// global limit).
type State struct {
	// Bucket is the opaque bucket hash reported by Discord, if any.
	Bucket string `json:"bucket,omitempty"`

	// Remaining is the number of requests left before the bucket resets.
	Remaining int `json:"remaining"`

	// ResetAt is when the bucket refills.
	// Calculated from X-RateLimit-Reset-After (seconds, fractional).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Exhausted returns true if no requests are left in the current window.
func (s *State) Exhausted() bool {
	return s.Remaining <= 0
}

// TimeUntilReset returns the duration until the bucket resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// ShouldWait reports whether a request on this bucket must wait for a reset.
func (s *State) ShouldWait() bool {
	return s.Exhausted() && s.TimeUntilReset() > 0
}

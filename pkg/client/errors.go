package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// Discord JSON error codes referenced by callers.
const (
	CodeUnknownGuild       = 10004
	CodeUnknownMember      = 10007
	CodeUnknownBan         = 10026
	CodeMissingPermissions = 50013
)

// APIError represents an error response from the Discord API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Code       int
	Message    string
	RetryAfter time.Duration
	Global     bool
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("Discord %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("Discord %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an APIError carrying the given Discord code.
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// errorBody mirrors Discord's JSON error payload.
type errorBody struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// newAPIError builds an APIError from a failed response. The body is read
// but not closed.
func newAPIError(resp *http.Response, class ErrorClass) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    resp.Status,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		var body errorBody
		if json.Unmarshal(data, &body) == nil {
			if body.Message != "" {
				apiErr.Message = body.Message
			}
			apiErr.Code = body.Code
			apiErr.Global = body.Global
			if body.RetryAfter > 0 {
				apiErr.RetryAfter = time.Duration(body.RetryAfter * float64(time.Second))
			}
		}
	}

	if apiErr.RetryAfter == 0 {
		apiErr.RetryAfter = ratelimit.ParseRetryAfter(resp.Header.Get(ratelimit.HeaderRetryAfter))
	}
	if resp.Header.Get(ratelimit.HeaderGlobal) == "true" {
		apiErr.Global = true
	}

	return apiErr
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will fail the same way again
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}

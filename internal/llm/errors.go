package llm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAPIKey is returned before any request is attempted without
	// credentials.
	ErrNoAPIKey = errors.New("API key not configured")

	// ErrNoChoices is returned when the provider answers 200 with an empty
	// choices array.
	ErrNoChoices = errors.New("no completion returned")

	// ErrToolRoundsExceeded is returned when a generation keeps requesting
	// tool calls past the configured bound.
	ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")
)

// APIError is a non-200 response from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is a 429 response. RetryAfter is zero when the provider
// sent no hint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded (429), retry after %s: %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("rate limit exceeded (429): %s", e.Message)
}

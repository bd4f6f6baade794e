package google

import (
	"fmt"
	"time"
)

// AuthError reports a credential problem (expired or revoked token,
// missing scope). It is not retried within a run.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("google auth error (%d): %s", e.StatusCode, e.Message)
}

func (e *AuthError) Temporary() bool { return false }

// RateLimitError reports that the API asked us to slow down.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("google rate limit (%d)", e.StatusCode)
}

func (e *RateLimitError) Temporary() bool { return true }

// NetworkError wraps transport failures and server-side errors that are
// worth retrying.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("google network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error   { return e.Err }
func (e *NetworkError) Temporary() bool { return true }

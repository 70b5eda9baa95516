package crawl

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers.
var (
	// ErrInvalidParameter marks caller-supplied input rejected before any
	// network I/O (empty keyword string, zero-value keyword).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBackoffExceeded marks a request abandoned after the cumulative
	// backoff ceiling was reached. It signals an API outage or credential
	// problem rather than a transient condition.
	ErrBackoffExceeded = errors.New("backoff ceiling exceeded")

	// ErrKeywordNotFound is returned by keyword sources on point lookup miss.
	ErrKeywordNotFound = errors.New("keyword not found")
)

// UnsupportedLanguageError rejects a language code outside the supported
// set. It is a precondition failure and is never retried.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Language)
}

// RateLimitError is the transport's recoverable rate-limit signal.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by search API (status %d)", e.StatusCode)
}

// IsRateLimit reports whether err carries a rate-limit signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

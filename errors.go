package booru

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikawa-dev/booru/tags"
)

// Sentinel errors shared across site packages. Adapters wrap these with
// site context via %w so callers can test with errors.Is.
var (
	// ErrUnauthorized means credentials are missing or were rejected.
	ErrUnauthorized = errors.New("authentication required")
	// ErrRateLimited means the remote API throttled the request despite
	// local limiting. It is classified transient and retried with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrPostNotFound means no post exists with the requested ID.
	ErrPostNotFound = errors.New("post not found")
	// ErrEmptyResponse means the API returned no data where some was expected.
	ErrEmptyResponse = errors.New("empty response from API")
)

// TagLimitError is returned when adding a tag would exceed a site's
// per-query tag limit. It is raised at the Tag call itself, before any
// network traffic.
type TagLimitError struct {
	Site   string
	Max    int
	Actual int
}

func (e *TagLimitError) Error() string {
	return fmt.Sprintf("%s allows a maximum of %d tags, but %d were provided", e.Site, e.Max, e.Actual)
}

// HTTPError is a non-OK HTTP response that does not map onto a more
// specific sentinel.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// DecodeError means a response body could not be decoded into the site's
// post model. It indicates an adapter/schema mismatch and is never retried.
type DecodeError struct {
	Site string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Site, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying. Remote throttling,
// 5xx responses, and network failures are transient; authentication,
// validation, and decode failures are permanent and short-circuit the
// retry budget.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var invalidTag *tags.InvalidTagError
	var tagLimit *TagLimitError
	var decode *DecodeError
	if errors.As(err, &invalidTag) || errors.As(err, &tagLimit) || errors.As(err, &decode) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	// Anything left is a transport-level failure: timeouts, DNS, resets.
	return true
}

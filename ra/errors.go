package ra

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrMissingCredentials indicates an authenticated call was attempted
	// without both username and API key configured
	ErrMissingCredentials = errors.New("missing credentials: username and api key are required")
	// ErrMalformedResponse indicates a 2xx response whose body could not be
	// decoded into the expected shape
	ErrMalformedResponse = errors.New("malformed API response")
	// ErrUnauthorized indicates authentication failure (401)
	ErrUnauthorized = errors.New("unauthorized: invalid username or api key")
	// ErrInvalidRequest indicates the server rejected the query itself (422)
	ErrInvalidRequest = errors.New("invalid request rejected by server")
	// ErrRateLimited indicates the retry budget was exhausted on 429 responses
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTimeout indicates the retry budget was exhausted on network timeouts
	ErrTimeout = errors.New("request timed out")
	// ErrConnectionFailed indicates a connection-level failure (DNS, refused,
	// reset); not retried since these usually point at configuration problems
	ErrConnectionFailed = errors.New("connection failed")
)

// HTTPError represents an unclassified non-2xx API response
type HTTPError struct {
	Endpoint   string
	StatusCode int
	BodyPrefix string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error: %s returned status %d: %s", e.Endpoint, e.StatusCode, e.BodyPrefix)
}

// IsFatal reports whether an error should abort a multi-item pipeline
// instead of being recorded against a single item. Unauthorized and an
// exhausted rate-limit budget would repeat for every remaining item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRateLimited)
}

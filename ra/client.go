// Package ra provides a rate-limit-aware client for the RetroAchievements
// web API together with the validated domain model built from its payloads.
package ra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// API endpoints, relative to the base URL
const (
	EndpointUserProfile  = "API_GetUserProfile.php"
	EndpointConsoleIDs   = "API_GetConsoleIDs.php"
	EndpointGameList     = "API_GetGameList.php"
	EndpointGameHashes   = "API_GetGameHashes.php"
	EndpointGameExtended = "API_GetGameExtended.php"
)

// DefaultBaseURL is the production API location
const DefaultBaseURL = "https://retroachievements.org/API/"

const (
	defaultTimeout        = 60 * time.Second
	defaultMaxRetries     = 4
	defaultInitialBackoff = 3 * time.Second
	maxBackoff            = 60 * time.Second
	bodyPrefixLen         = 200
)

// StatusFunc receives a human-readable status message before each request
// attempt. It must not block.
type StatusFunc func(message string)

// Client performs single API calls and hides retry mechanics from callers.
// It holds no state between calls apart from credentials and configuration.
type Client struct {
	baseURL        string
	username       string
	apiKey         string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	status         StatusFunc
	logger         zerolog.Logger

	// sleep waits for a backoff window; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API base URL (used for testing)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithMaxRetries sets how many additional attempts are made after a 429 or
// a network timeout
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialBackoff sets the first backoff window; subsequent windows
// double per attempt
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.initialBackoff = d
		}
	}
}

// WithStatusFunc sets the observer for per-attempt status messages
func WithStatusFunc(fn StatusFunc) Option {
	return func(c *Client) {
		c.status = fn
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a new API client
func NewClient(username, apiKey string, logger zerolog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:        DefaultBaseURL,
		username:       username,
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		logger:         logger.With().Str("component", "ra-client").Logger(),
	}

	client.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Request performs one logical GET call against an endpoint and returns the
// raw JSON payload. 429 responses and network timeouts are retried with
// exponential backoff and jitter; all other failures are terminal and
// classified via the package error values.
func (c *Client) Request(ctx context.Context, endpoint string, params map[string]string, requiresAuth bool) (json.RawMessage, error) {
	if requiresAuth && (c.username == "" || c.apiKey == "") {
		return nil, ErrMissingCredentials
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	if requiresAuth {
		query.Set("z", c.username)
		query.Set("y", c.apiKey)
	}
	requestURL := c.baseURL + endpoint + "?" + query.Encode()

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			c.notify(fmt.Sprintf("Requesting %s...", endpoint))
		} else {
			c.notify(fmt.Sprintf("Requesting %s (attempt %d/%d)...", endpoint, attempt+1, c.maxRetries+1))
		}

		body, status, header, err := c.doGet(ctx, requestURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if isTimeout(err) {
				if attempt >= c.maxRetries {
					c.logger.Warn().Str("endpoint", endpoint).Int("attempts", attempt+1).Msg("Timeout retry budget exhausted")
					return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, endpoint, err)
				}
				if err := c.waitBackoff(ctx, endpoint, attempt, 0); err != nil {
					return nil, err
				}
				continue
			}
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Connection failure")
			return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, endpoint, err)
		}

		switch {
		case status >= 200 && status < 300:
			var raw json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				c.logger.Error().Str("endpoint", endpoint).Str("body", prefix(body)).Msg("Response body is not valid JSON")
				return nil, fmt.Errorf("%w: %s: %s", ErrMalformedResponse, endpoint, prefix(body))
			}
			return raw, nil

		case status == http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, endpoint)

		case status == http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidRequest, endpoint, prefix(body))

		case status == http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				c.logger.Warn().Str("endpoint", endpoint).Int("attempts", attempt+1).Msg("Rate limit retry budget exhausted")
				return nil, fmt.Errorf("%w: %s after %d attempts", ErrRateLimited, endpoint, attempt+1)
			}
			serverWait := retryAfter(header)
			if err := c.waitBackoff(ctx, endpoint, attempt, serverWait); err != nil {
				return nil, err
			}
			continue

		default:
			return nil, &HTTPError{Endpoint: endpoint, StatusCode: status, BodyPrefix: prefix(body)}
		}
	}
}

// doGet executes one HTTP round-trip. The request is rebuilt per attempt.
func (c *Client) doGet(ctx context.Context, requestURL string) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, err
	}

	return body, resp.StatusCode, resp.Header, nil
}

// waitBackoff sleeps before the next attempt. A server-supplied wait takes
// precedence over the computed exponential window.
func (c *Client) waitBackoff(ctx context.Context, endpoint string, attempt int, serverWait time.Duration) error {
	wait := c.initialBackoff << uint(attempt)
	// up to 20% jitter
	wait += time.Duration(rand.Float64() * 0.2 * float64(wait))
	if wait > maxBackoff {
		wait = maxBackoff
	}
	if serverWait > 0 {
		wait = serverWait
	}

	c.notify(fmt.Sprintf("Rate limited on %s, waiting %s before retry %d/%d...",
		endpoint, wait.Round(time.Second), attempt+2, c.maxRetries+1))
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("attempt", attempt+1).
		Dur("backoff", wait).
		Msg("Waiting before retry")

	return c.sleep(ctx, wait)
}

func (c *Client) notify(message string) {
	if c.status != nil {
		c.status(message)
	}
}

// retryAfter parses a Retry-After header as seconds, adding a one second
// safety margin. Returns 0 when absent or not numeric.
func retryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds+1) * time.Second
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func prefix(body []byte) string {
	if len(body) > bodyPrefixLen {
		return string(body[:bodyPrefixLen])
	}
	return string(body)
}

// GetUserProfile verifies the stored credentials against the profile
// endpoint.
func (c *Client) GetUserProfile(ctx context.Context) (*Profile, error) {
	raw, err := c.Request(ctx, EndpointUserProfile, map[string]string{"u": c.username}, true)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, EndpointUserProfile, err)
	}
	if profile.Name() == "" {
		return nil, fmt.Errorf("%w: %s: profile has no user name", ErrMalformedResponse, EndpointUserProfile)
	}

	return &profile, nil
}

// GetConsoleIDs enumerates the consoles known to the service.
func (c *Client) GetConsoleIDs(ctx context.Context) ([]Console, error) {
	raw, err := c.Request(ctx, EndpointConsoleIDs, nil, true)
	if err != nil {
		return nil, err
	}

	var consoles []Console
	if err := json.Unmarshal(raw, &consoles); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, EndpointConsoleIDs, err)
	}

	return consoles, nil
}

// GetGameList retrieves the item list for one console. A response that is
// valid JSON but not an array is treated as an empty catalog, not a failure.
func (c *Client) GetGameList(ctx context.Context, consoleID int) ([]GameListEntry, error) {
	raw, err := c.Request(ctx, EndpointGameList, map[string]string{"i": strconv.Itoa(consoleID)}, true)
	if err != nil {
		return nil, err
	}

	var list []GameListEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		c.logger.Warn().Int("console_id", consoleID).Msg("Game list response is not an array, treating as empty")
		return nil, nil
	}

	return list, nil
}

// GetGameHashes retrieves the known checksums for one game.
func (c *Client) GetGameHashes(ctx context.Context, gameID int) ([]GameHash, error) {
	raw, err := c.Request(ctx, EndpointGameHashes, map[string]string{"i": strconv.Itoa(gameID)}, true)
	if err != nil {
		return nil, err
	}

	var resp gameHashesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, EndpointGameHashes, err)
	}

	return resp.Results, nil
}

// GetGameExtended retrieves achievement and patch details for one game.
func (c *Client) GetGameExtended(ctx context.Context, gameID int) (*GameExtended, error) {
	raw, err := c.Request(ctx, EndpointGameExtended, map[string]string{"i": strconv.Itoa(gameID)}, true)
	if err != nil {
		return nil, err
	}

	var extended GameExtended
	if err := json.Unmarshal(raw, &extended); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, EndpointGameExtended, err)
	}

	return &extended, nil
}

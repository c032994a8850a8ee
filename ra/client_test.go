package ra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithBaseURL(serverURL + "/")}
	client := NewClient("tester", "secret-key", zerolog.Nop(), append(base, opts...)...)
	return client
}

// recordSleeps replaces the backoff sleep with an instant recorder
func recordSleeps(c *Client) *[]time.Duration {
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return &sleeps
}

func TestRequestSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tester", r.URL.Query().Get("z"))
		assert.Equal(t, "secret-key", r.URL.Query().Get("y"))
		assert.Equal(t, "7", r.URL.Query().Get("i"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	raw, err := client.Request(context.Background(), "endpoint.php", map[string]string{"i": "7"}, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestRequestMissingCredentials(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient("", "", zerolog.Nop(), WithBaseURL(server.URL+"/"))
	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, int32(0), hits.Load(), "must not touch the network without credentials")
}

func TestRequestNoAuthNeeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("z"))
		assert.Empty(t, r.URL.Query().Get("y"))
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient("", "", zerolog.Nop(), WithBaseURL(server.URL+"/"))
	_, err := client.Request(context.Background(), "endpoint.php", nil, false)
	assert.NoError(t, err)
}

func TestRequestStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"Success":false}`, ErrUnauthorized},
		{"invalid request", http.StatusUnprocessableEntity, `{"errors":["bad id"]}`, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Request(context.Background(), "endpoint.php", nil, true)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broke")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Request(context.Background(), "endpoint.php", nil, true)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "endpoint.php", httpErr.Endpoint)
	assert.Contains(t, httpErr.BodyPrefix, "upstream broke")
}

func TestRequestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRequestRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	backoff := 100 * time.Millisecond
	client := newTestClient(t, server.URL, WithInitialBackoff(backoff))
	sleeps := recordSleeps(client)

	raw, err := client.Request(context.Background(), "endpoint.php", nil, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(3), hits.Load())

	// exponential schedule with up to 20% jitter
	require.Len(t, *sleeps, 2)
	assert.GreaterOrEqual(t, (*sleeps)[0], backoff)
	assert.LessOrEqual(t, (*sleeps)[0], backoff+backoff/5)
	assert.GreaterOrEqual(t, (*sleeps)[1], 2*backoff)
	assert.LessOrEqual(t, (*sleeps)[1], 2*backoff+2*backoff/5)
}

func TestRequestRateLimitBudgetExhausted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithMaxRetries(2), WithInitialBackoff(time.Millisecond))
	recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), hits.Load(), "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRequestHonorsRetryAfter(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	sleeps := recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	require.NoError(t, err)

	// server wait plus one second margin, overriding the computed window
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 8*time.Second, (*sleeps)[0])
}

func TestRequestIgnoresBogusRetryAfter(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	backoff := 50 * time.Millisecond
	client := newTestClient(t, server.URL, WithInitialBackoff(backoff))
	sleeps := recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	assert.GreaterOrEqual(t, (*sleeps)[0], backoff)
}

func TestRequestRetriesTimeout(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithTimeout(50*time.Millisecond),
		WithInitialBackoff(time.Millisecond))
	recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRequestTimeoutBudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithTimeout(20*time.Millisecond),
		WithMaxRetries(1),
		WithInitialBackoff(time.Millisecond))
	recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRequestConnectionFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := newTestClient(t, server.URL)
	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestRequestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Request(ctx, "endpoint.php", nil, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestStatusNotifications(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	var messages []string
	client := newTestClient(t, server.URL,
		WithInitialBackoff(time.Millisecond),
		WithStatusFunc(func(message string) {
			messages = append(messages, message)
		}))
	recordSleeps(client)

	_, err := client.Request(context.Background(), "endpoint.php", nil, true)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(messages), 3)
	assert.Equal(t, "Requesting endpoint.php...", messages[0])
	assert.Contains(t, messages[1], "Rate limited")
	assert.Contains(t, messages[2], "attempt 2/5")
}

func TestGetUserProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tester", r.URL.Query().Get("u"))
		fmt.Fprint(w, `{"User":"tester","Motto":"hi","MemberSince":"2015-01-01"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	profile, err := client.GetUserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tester", profile.Name())
	assert.Equal(t, "hi", profile.Motto)
}

func TestGetUserProfileLegacyField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Username":"tester"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	profile, err := client.GetUserProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tester", profile.Name())
}

func TestGetUserProfileEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetUserProfile(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetConsoleIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"ID":1,"Name":"Mega Drive"},{"ID":7,"Name":"NES"}]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	consoles, err := client.GetConsoleIDs(context.Background())
	require.NoError(t, err)
	require.Len(t, consoles, 2)
	assert.Equal(t, Console{ID: 7, Name: "NES"}, consoles[1])
}

func TestGetConsoleIDsNotAnArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Success":false}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetConsoleIDs(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetGameList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("i"))
		fmt.Fprint(w, `[{"ID":1446,"Title":"Mega Man","Hash":"8e3ac9b0e1e9c2a6b3a0c8c5e21aa91d","ConsoleID":7}]`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	list, err := client.GetGameList(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1446, list[0].ID)
	assert.Equal(t, "Mega Man", list[0].Title)
}

func TestGetGameListNotAnArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Success":false}`)
	}))
	defer server.Close()

	// a non-array list payload means an empty catalog, not a failure
	client := newTestClient(t, server.URL)
	list, err := client.GetGameList(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetGameHashes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Results":[{"MD5":"8e3ac9b0e1e9c2a6b3a0c8c5e21aa91d","Name":"Mega Man (USA).nes","Labels":["nointro"],"Status":"Supported"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	hashes, err := client.GetGameHashes(context.Background(), 1446)
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	assert.Equal(t, "Mega Man (USA).nes", hashes[0].Name)
	assert.Equal(t, []string{"nointro"}, hashes[0].Labels)
}

func TestGetGameExtended(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ID":1446,"Title":"Mega Man","NumAchievements":50,"Points":710,"PatchUrl":"https://example.org/p.zip"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	extended, err := client.GetGameExtended(context.Background(), 1446)
	require.NoError(t, err)
	assert.Equal(t, 50, extended.NumAchievements)
	assert.Equal(t, 710, extended.Points)
	assert.Equal(t, "https://example.org/p.zip", extended.PatchURL)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("wrapped: %w", ErrUnauthorized)))
	assert.True(t, IsFatal(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.False(t, IsFatal(ErrTimeout))
	assert.False(t, IsFatal(ErrConnectionFailed))
	assert.False(t, IsFatal(errors.New("anything else")))
}

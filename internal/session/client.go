package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// State is the authentication state of a Client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	// StateRefreshing is transient: a refresh is in flight. New requests are
	// not blocked by it.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// Client issues authenticated requests against the meal-planning API and
// hides access-token expiry from callers while a refresh credential is valid.
//
// A Client is safe for concurrent use. Construct one per session and pass it
// to whatever issues requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	store      TokenStore
	onExpired  func()

	proactiveWindow time.Duration
	now             func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	refreshGroup singleflight.Group
	refreshing   atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests to rps per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTokenStore persists tokens on login and refresh and clears them when
// the session ends.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithExpiryHook registers fn to run when the session is terminated after a
// failed refresh-and-retry cycle.
func WithExpiryHook(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithProactiveRefresh refreshes before sending a request when the held JWT
// expires within window. Zero disables it.
func WithProactiveRefresh(window time.Duration) Option {
	return func(c *Client) { c.proactiveWindow = window }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client for the API rooted at baseURL (e.g. http://localhost:8000/api/v1).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAccessToken replaces the held access token. An empty token clears it.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// AccessToken returns the held access token, or "" when unauthenticated.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetTokens installs both the access token and the refresh credential.
func (c *Client) SetTokens(t Tokens) {
	c.mu.Lock()
	c.accessToken = t.AccessToken
	if t.RefreshToken != "" {
		c.refreshToken = t.RefreshToken
	}
	c.mu.Unlock()
}

// State reports the current authentication state.
func (c *Client) State() State {
	if c.refreshing.Load() {
		return StateRefreshing
	}
	if c.AccessToken() != "" {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// ExpiresAt returns the expiry encoded in the held access token, if it is a JWT.
func (c *Client) ExpiresAt() (time.Time, bool) {
	return TokenExpiry(c.AccessToken())
}

// Restore loads previously persisted tokens from the token store.
// It reports whether a session was found.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	tokens, err := c.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens == nil || (tokens.AccessToken == "" && tokens.RefreshToken == "") {
		return false, nil
	}
	c.SetTokens(*tokens)
	return true, nil
}

// Get issues a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, endpoint, body, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// Do sends one API request. body, when non-nil, is encoded as JSON; out, when
// non-nil, receives the decoded JSON response.
//
// A 401 on a non-auth endpoint triggers one deduplicated refresh followed by
// exactly one retry. A failed proactive refresh counts as that refresh. If
// the refresh fails or the retry is rejected too, the session is terminated
// and ErrAuthExpired is returned. Other non-2xx responses are returned as
// *HTTPError.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := validateRequest(method, endpoint); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: failed to encode body: %v", ErrInvalidRequest, err)
		}
		payload = b
	}

	auth := !isAuthEndpoint(endpoint)
	var refreshFailed bool
	if auth && c.proactiveWindow > 0 {
		failed, err := c.refreshIfExpiring(ctx)
		if err != nil {
			return err
		}
		refreshFailed = failed
	}

	token := c.AccessToken()
	resp, err := c.send(ctx, method, endpoint, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && auth {
		discard(resp)

		ok, err := c.renewAfterUnauthorized(ctx, token, refreshFailed)
		if err != nil {
			return err
		}
		if !ok {
			c.terminate(ctx, "token refresh failed")
			return ErrAuthExpired
		}

		resp, err = c.send(ctx, method, endpoint, payload, c.AccessToken())
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			discard(resp)
			c.terminate(ctx, "retried request rejected")
			return ErrAuthExpired
		}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// send performs a single HTTP exchange with no retry logic.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, token string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPatch:  true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

func validateRequest(method, endpoint string) error {
	if !allowedMethods[method] {
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, method)
	}
	if !strings.HasPrefix(endpoint, "/") || strings.Contains(endpoint, "://") {
		return fmt.Errorf("%w: endpoint %q must be a path", ErrInvalidRequest, endpoint)
	}
	return nil
}

// isAuthEndpoint reports whether a 401 from endpoint is a real authentication
// answer rather than an expired access token.
func isAuthEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, "/auth/")
}

func logf(format string, args ...any) {
	log.Printf("[session] "+format, args...)
}

package session

import (
	"context"
	"encoding/json"
	"net/http"
)

const refreshEndpoint = "/auth/refresh"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	Success bool   `json:"success"`
	Data    Tokens `json:"data"`
}

// EnsureFreshToken obtains a new access token using the refresh credential.
// Concurrent callers share a single in-flight refresh. It returns false when
// no refresh credential exists, the refresh endpoint is unreachable, or it
// answers with a non-2xx status.
func (c *Client) EnsureFreshToken(ctx context.Context) bool {
	ok, _ := c.ensureFresh(ctx)
	return ok
}

// ensureFresh joins or starts the shared refresh. The refresh itself runs on a
// context detached from ctx so an abandoned caller cannot interrupt it; ctx
// only bounds how long this caller waits.
func (c *Client) ensureFresh(ctx context.Context) (bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		c.refreshing.Store(true)
		defer c.refreshing.Store(false)
		return c.refresh(detached), nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// renewAfterUnauthorized decides how a request rejected with used should get
// a new token. If another request already replaced the token, the current one
// is reused instead of starting a second refresh. refreshFailed means this
// request already spent its refresh attempt before sending.
func (c *Client) renewAfterUnauthorized(ctx context.Context, used string, refreshFailed bool) (bool, error) {
	if current := c.AccessToken(); current != "" && current != used {
		return true, nil
	}
	if refreshFailed {
		return false, nil
	}
	return c.ensureFresh(ctx)
}

// refreshIfExpiring refreshes ahead of time when the held JWT expires within
// the proactive window. It reports whether a refresh was attempted and failed.
func (c *Client) refreshIfExpiring(ctx context.Context) (bool, error) {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false, nil
	}
	if c.now().Add(c.proactiveWindow).Before(exp) {
		return false, nil
	}
	refreshed, err := c.ensureFresh(ctx)
	if err != nil {
		return false, err
	}
	if !refreshed {
		logf("proactive refresh failed, sending the current token")
	}
	return !refreshed, nil
}

func (c *Client) refresh(ctx context.Context) bool {
	credential := c.refreshCredential(ctx)
	if credential == "" {
		refreshTotal.WithLabelValues("no_credential").Inc()
		return false
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: credential})
	if err != nil {
		return false
	}

	logf("refreshing access token")
	resp, err := c.send(ctx, http.MethodPost, refreshEndpoint, payload, "")
	if err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		logf("refresh failed: %v", err)
		return false
	}
	defer discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		refreshTotal.WithLabelValues("rejected").Inc()
		logf("refresh rejected: status %d", resp.StatusCode)
		return false
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Data.AccessToken == "" {
		refreshTotal.WithLabelValues("error").Inc()
		logf("refresh response unusable: %v", err)
		return false
	}

	tokens := body.Data
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = credential
	}
	c.SetTokens(tokens)
	c.persist(ctx, tokens)

	refreshTotal.WithLabelValues("success").Inc()
	return true
}

func (c *Client) refreshCredential(ctx context.Context) string {
	c.mu.RLock()
	credential := c.refreshToken
	c.mu.RUnlock()
	if credential != "" || c.store == nil {
		return credential
	}

	tokens, err := c.store.Load(ctx)
	if err != nil {
		logf("failed to load refresh credential: %v", err)
		return ""
	}
	if tokens == nil {
		return ""
	}
	return tokens.RefreshToken
}

func (c *Client) persist(ctx context.Context, tokens Tokens) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, tokens); err != nil {
		logf("warning: failed to persist tokens: %v", err)
	}
}

// terminate ends the session after an unrecoverable 401.
func (c *Client) terminate(ctx context.Context, reason string) {
	c.mu.Lock()
	hadSession := c.accessToken != "" || c.refreshToken != ""
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()

	if !hadSession {
		return
	}

	sessionExpiredTotal.Inc()
	logf("session expired: %s", reason)

	if c.store != nil {
		if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
			logf("warning: failed to clear stored tokens: %v", err)
		}
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}

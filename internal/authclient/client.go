// Package authclient is a Go client for the HeartGuard auth API. It keeps the
// session cookie in a jar, caches the identity and revalidates it before
// security-sensitive calls.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrUnauthorized means the server no longer accepts the session.
	ErrUnauthorized = errors.New("authclient: unauthorized")
	// ErrUnavailable means the server kept answering 503.
	ErrUnavailable = errors.New("authclient: service unavailable")
)

// APIError is a problem+json reply.
type APIError struct {
	Status    int                 `json:"status"`
	Code      string              `json:"code"`
	Title     string              `json:"title"`
	Detail    string              `json:"detail"`
	RequestID string              `json:"requestId"`
	Context   map[string]any      `json:"context,omitempty"`
	Fields    map[string][]string `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authclient: %d %s: %s", e.Status, e.Code, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable
	}
	return false
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// CacheMaxAge bounds how long an identity is trusted without asking the
	// server again.
	CacheMaxAge time.Duration
	// Retries is the number of extra attempts for 503 replies.
	Retries uint64
	// RetryBase is the first backoff delay; later delays grow exponentially.
	RetryBase  time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   *SessionCache
	retries uint64
	base    time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("authclient: base url is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 5 * time.Minute
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		cache:   NewSessionCache(cfg.CacheMaxAge),
		retries: cfg.Retries,
		base:    cfg.RetryBase,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

// Cache exposes the identity cache.
func (c *Client) Cache() *SessionCache { return c.cache }

// --- Requests ---

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type sessionReply struct {
	ExpiresAt time.Time `json:"expiresAt"`
	IsAdmin   bool      `json:"isAdmin"`
	Kind      string    `json:"kind"`
}

type authReply struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
	Session sessionReply `json:"session"`
}

// --- Operations ---

// Login signs in and caches the identity.
func (c *Client) Login(ctx context.Context, req LoginRequest) (Identity, error) {
	return c.signIn(ctx, "/auth/login", req)
}

// AdminLogin signs in an administrator.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (Identity, error) {
	return c.signIn(ctx, "/auth/admin/login", map[string]string{"email": email, "password": password})
}

// Signup creates an account and caches the new identity.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (Identity, error) {
	return c.signIn(ctx, "/auth/signup", req)
}

func (c *Client) signIn(ctx context.Context, path string, body any) (Identity, error) {
	var reply authReply
	if err := c.do(ctx, http.MethodPost, path, body, &reply); err != nil {
		c.cache.Invalidate()
		return Identity{}, err
	}
	id := Identity{
		UserID:    reply.User.ID,
		Name:      reply.User.Name,
		Email:     reply.User.Email,
		Role:      reply.User.Role,
		IsAdmin:   reply.Session.IsAdmin,
		ExpiresAt: reply.Session.ExpiresAt,
	}
	c.cache.Populate(id, c.now())
	return id, nil
}

// Logout ends the session. The local cache is cleared even when the server
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.cache.Invalidate()
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Session returns the cached identity, asking the server only when the cache
// is empty or stale.
func (c *Client) Session(ctx context.Context) (Identity, error) {
	if id, ok := c.cache.Get(c.now()); ok {
		return id, nil
	}
	return c.Revalidate(ctx)
}

// Revalidate asks the server for the current identity and replaces the cache.
func (c *Client) Revalidate(ctx context.Context) (Identity, error) {
	var id Identity
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &id); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.cache.Invalidate()
		}
		return Identity{}, err
	}
	c.cache.Populate(id, c.now())
	return id, nil
}

// Refresh extends the session and returns the new expiry.
func (c *Client) Refresh(ctx context.Context) (time.Time, error) {
	var reply sessionReply
	if err := c.do(ctx, http.MethodPost, "/auth/refresh-session", nil, &reply); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.cache.Invalidate()
		}
		return time.Time{}, err
	}
	c.cache.Extend(reply.ExpiresAt, c.now())
	return reply.ExpiresAt, nil
}

// ChangePassword revalidates the session with the server first; a cached
// identity is never enough for this call.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if _, err := c.Revalidate(ctx); err != nil {
		return err
	}
	body := map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}
	if err := c.do(ctx, http.MethodPost, "/user/change-password", body, nil); err != nil {
		return err
	}
	_, err := c.Revalidate(ctx)
	return err
}

// KeepAlive refreshes the session every interval until ctx is done or the
// server rejects the session.
func (c *Client) KeepAlive(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			exp, err := c.Refresh(ctx)
			switch {
			case err == nil:
				c.logger.Debug("session refreshed", "expires_at", exp)
			case errors.Is(err, ErrUnauthorized):
				return err
			default:
				c.logger.Warn("session refresh failed", "error", err)
			}
		}
	}
}

// --- Transport ---

// do sends one JSON request, retrying 503 replies with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, method, path, payload, out)
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeProblem(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeProblem(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(b) > 0 && json.Unmarshal(b, apiErr) == nil {
		apiErr.Status = resp.StatusCode
		if fields, ok := apiErr.Context["fields"].(map[string]any); ok {
			apiErr.Fields = make(map[string][]string, len(fields))
			for k, v := range fields {
				list, _ := v.([]any)
				for _, m := range list {
					if s, ok := m.(string); ok {
						apiErr.Fields[k] = append(apiErr.Fields[k], s)
					}
				}
			}
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = "Err" + strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "")
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			apiErr.Context = withRetryAfter(apiErr.Context, secs)
		}
	}
	return apiErr
}

func withRetryAfter(ctx map[string]any, secs int) map[string]any {
	if ctx == nil {
		ctx = map[string]any{}
	}
	ctx["retryAfter"] = secs
	return ctx
}

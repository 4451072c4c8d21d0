package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/storefront/users"
)

const refreshKey = "refresh"

// keeps a valid access token available and refreshes it at most once at a time
type Manager struct {
	endpoint  string
	http      *http.Client
	store     TokenStore
	group     singleflight.Group
	throttle  *rate.Limiter
	now       func() time.Time
	proactive bool

	mu    sync.Mutex
	timer *time.Timer
}

type Option func(*Manager)

// sets the transport used for auth calls and as the base of Client()
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.http = c
	}
}

// disables the timer that refreshes ahead of expiry
func WithoutProactiveRefresh() Option {
	return func(m *Manager) {
		m.proactive = false
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// creates a token manager for the API at endpoint
func NewManager(endpoint string, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		endpoint:  strings.TrimRight(endpoint, "/"),
		http:      &http.Client{Timeout: requestTimeout},
		store:     store,
		throttle:  rate.NewLimiter(rate.Every(2*time.Second), 5),
		now:       time.Now,
		proactive: true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// http client that attaches the bearer token and recovers from 401s
func (m *Manager) Client() *http.Client {
	base := m.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &http.Client{
		Transport: NewTransport(m, base),
		Timeout:   m.http.Timeout,
	}
}

// creates a local account; the caller still has to log in
func (m *Manager) Signup(ctx context.Context, name, email, password string) (*users.User, error) {
	var resp signupResponse

	err := m.post(ctx, "/api/auth/signup", "", signupRequest{Name: name, Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.User, nil
}

// authenticates with email and password and stores the issued pair
func (m *Manager) Login(ctx context.Context, email, password string) (*users.User, error) {
	var resp loginResponse

	err := m.post(ctx, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}

	tokens := &Tokens{
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		ExpiresAt:    m.expiryOf(resp.Tokens.AccessToken, resp.Tokens.ExpiresIn),
	}

	if err := m.store.Save(tokens); err != nil {
		return nil, err
	}

	m.schedule(tokens.ExpiresAt)

	return resp.User, nil
}

// returns a usable access token, refreshing first when it is about to expire;
// returns "" with no error when nobody is logged in
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return "", err
	}

	if tokens == nil || tokens.AccessToken == "" {
		return "", nil
	}

	if m.fresh(tokens) {
		return tokens.AccessToken, nil
	}

	// a refresh that finished after our load already produced a fresh token
	return m.refresh(ctx, m.fresh)
}

// exchanges the refresh token for a new access token; concurrent callers share one call
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.refresh(ctx, nil)
}

// refresh after the server rejected stale; skipped when the stored token already changed
func (m *Manager) refreshAfterUnauthorized(ctx context.Context, stale string) (string, error) {
	return m.refresh(ctx, func(t *Tokens) bool {
		return t.AccessToken != stale && m.fresh(t)
	})
}

// skip reports whether the stored tokens make the network call unnecessary
func (m *Manager) refresh(ctx context.Context, skip func(t *Tokens) bool) (string, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		return m.doRefresh(context.WithoutCancel(ctx), skip)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, skip func(t *Tokens) bool) (string, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return "", err
	}

	if tokens == nil || tokens.RefreshToken == "" {
		return "", ErrNotLoggedIn
	}

	if skip != nil && skip(tokens) {
		return tokens.AccessToken, nil
	}

	if !m.throttle.Allow() {
		return "", ErrRefreshThrottled
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var resp refreshResponse

	err = m.post(ctx, "/api/auth/refresh-token", "", refreshRequest{RefreshToken: tokens.RefreshToken}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				m.reset()
				return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
			case http.StatusTooManyRequests:
				return "", fmt.Errorf("%w: %w", ErrRefreshRateLimited, err)
			}
		}

		return "", err
	}

	// the refresh token is not rotated
	tokens.AccessToken = resp.AccessToken
	tokens.ExpiresAt = m.expiryOf(resp.AccessToken, resp.ExpiresIn)

	if err := m.store.Save(tokens); err != nil {
		return "", err
	}

	m.schedule(tokens.ExpiresAt)

	logger.Debug("access token refreshed", "expires_at", tokens.ExpiresAt)

	return tokens.AccessToken, nil
}

// tells the server and forgets the stored tokens regardless of the answer
func (m *Manager) Logout(ctx context.Context) error {
	tokens, err := m.store.Load()
	if err != nil {
		return err
	}

	var remoteErr error
	if tokens != nil && tokens.AccessToken != "" {
		remoteErr = m.post(ctx, "/api/auth/logout", tokens.AccessToken, nil, nil)
	}

	m.reset()

	var apiErr *APIError
	if errors.As(remoteErr, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return nil
	}

	return remoteErr
}

// fetches the identity behind the stored token
func (m *Manager) CurrentUser(ctx context.Context) (*users.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out meResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}

	return out.User, nil
}

// stops the proactive refresh timer
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) fresh(t *Tokens) bool {
	return t.AccessToken != "" && m.now().Add(expiryBuffer).Before(t.ExpiresAt)
}

func (m *Manager) schedule(expiresAt time.Time) {
	if !m.proactive {
		return
	}

	delay := expiresAt.Add(-refreshLead).Sub(m.now())
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}

	m.timer = time.AfterFunc(delay, func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			logger.Warn("proactive token refresh failed", "error", err)
		}
	})
}

func (m *Manager) reset() {
	m.Close()

	if err := m.store.Clear(); err != nil {
		logger.Warn("failed to clear stored tokens", "error", err)
	}
}

// expiry from the token claims, falling back to the advertised lifetime
func (m *Manager) expiryOf(token string, expiresIn int64) time.Time {
	if claims := auth.DecodeUnsafe(token); claims != nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}

	return m.now().Add(time.Duration(expiresIn) * time.Second)
}

func (m *Manager) post(ctx context.Context, path, bearer string, body, out any) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
			apiErr.Reason = errResp.Reason
		} else {
			apiErr.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}

		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

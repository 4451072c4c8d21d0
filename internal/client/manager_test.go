package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/storefront/users"
)

var testIdentity = auth.Identity{ID: "u1", Email: "ann@x.com", Role: users.RoleUser}

// minimal auth API: mints tokens with real codecs and counts refresh calls
type fakeAPI struct {
	t         *testing.T
	long      *auth.Codec
	short     *auth.Codec
	loginTTL  *auth.Codec
	refreshes atomic.Int32
	delay     time.Duration
	failAuth  atomic.Bool
	status    atomic.Int32

	mu      sync.Mutex
	current string
	strict  bool
	bodies  []string
}

func newCodec(t *testing.T, ttl time.Duration) *auth.Codec {
	t.Helper()

	c, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  "client-test-access",
		RefreshSecret: "client-test-refresh",
		AccessTTL:     ttl,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	return c
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{
		t:     t,
		long:  newCodec(t, time.Hour),
		short: newCodec(t, time.Minute),
	}
	api.loginTTL = api.long

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", api.login)
	mux.HandleFunc("POST /api/auth/signup", api.signup)
	mux.HandleFunc("POST /api/auth/refresh-token", api.refresh)
	mux.HandleFunc("GET /api/auth/me", api.me)
	mux.HandleFunc("POST /api/auth/echo", api.echo)
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return api, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	pair, err := a.loginTTL.IssuePair(testIdentity)
	require.NoError(a.t, err)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   users.User{ID: testIdentity.ID, Email: testIdentity.Email, Role: users.RoleUser},
		"tokens": pair,
	})
}

func (a *fakeAPI) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&req))

	if req.Email == testIdentity.Email {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "message": "an account with this email already exists"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "account created successfully",
		"user":    users.User{ID: "u2", Name: req.Name, Email: req.Email, Role: users.RoleUser},
	})
}

func (a *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	a.refreshes.Add(1)
	time.Sleep(a.delay)

	if code := int(a.status.Load()); code != 0 {
		writeJSON(w, code, map[string]string{"error": http.StatusText(code), "message": "refresh refused"})
		return
	}

	if a.failAuth.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "invalid or expired token"})
		return
	}

	var body refreshRequest
	require.NoError(a.t, json.NewDecoder(r.Body).Decode(&body))

	if _, err := a.long.VerifyRefresh(body.RefreshToken); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	access, err := a.long.SignAccess(testIdentity)
	require.NoError(a.t, err)

	a.mu.Lock()
	a.current = access
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"accessToken": access, "expiresIn": 3600})
}

// in strict mode only the most recently refreshed token is accepted
func (a *fakeAPI) authorized(r *http.Request) bool {
	token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
	if !ok {
		return false
	}

	if _, err := a.long.VerifyAccess(token); err != nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return !a.strict || token == a.current
}

func (a *fakeAPI) me(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": users.User{ID: testIdentity.ID, Email: testIdentity.Email}})
}

func (a *fakeAPI) echo(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.bodies = append(a.bodies, string(body))
	a.mu.Unlock()

	if !a.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}

// stores a pair whose access token expires within the refresh buffer
func seedNearExpiry(t *testing.T, api *fakeAPI, store TokenStore) *Tokens {
	t.Helper()

	pair, err := api.short.IssuePair(testIdentity)
	require.NoError(t, err)

	tokens := &Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    auth.DecodeUnsafe(pair.AccessToken).ExpiresAt.Time,
	}
	require.NoError(t, store.Save(tokens))

	return tokens
}

func TestLogin_StoresTokens(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())

	u, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", u.Email)

	tokens, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tokens.ExpiresAt, 5*time.Second)
}

func TestSignup(t *testing.T) {
	_, srv := newFakeAPI(t)
	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())

	u, err := m.Signup(context.Background(), "Bob", "bob@x.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", u.Email)

	_, err = m.Signup(context.Background(), "Ann", testIdentity.Email, "abc123")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestEnsureValidToken_NoTokens(t *testing.T) {
	_, srv := newFakeAPI(t)
	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())

	token, err := m.EnsureValidToken(context.Background())

	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestEnsureValidToken_FreshTokenSkipsRefresh(t *testing.T) {
	api, srv := newFakeAPI(t)
	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())

	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, int32(0), api.refreshes.Load())
}

func TestEnsureValidToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.delay = 100 * time.Millisecond

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())
	stale := seedNearExpiry(t, api, store)

	const n = 20

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.EnsureValidToken(context.Background())
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), api.refreshes.Load(), "exactly one network refresh")

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	assert.NotEqual(t, stale.AccessToken, results[0])

	stored, _ := store.Load()
	assert.Equal(t, stale.RefreshToken, stored.RefreshToken, "refresh token is not rotated")
}

func TestEnsureValidToken_RefreshRejectedClearsState(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.failAuth.Store(true)

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())
	seedNearExpiry(t, api, store)

	_, err := m.EnsureValidToken(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestEnsureValidToken_RefreshFailureByStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    error
		cleared bool
	}{
		{"rate limited keeps tokens", http.StatusTooManyRequests, ErrRefreshRateLimited, false},
		{"server error keeps tokens", http.StatusServiceUnavailable, nil, false},
		{"bad request clears", http.StatusBadRequest, ErrSessionExpired, true},
		{"forbidden clears", http.StatusForbidden, ErrSessionExpired, true},
		{"account gone clears", http.StatusNotFound, ErrSessionExpired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, srv := newFakeAPI(t)
			api.status.Store(int32(tt.status))

			store := NewMemoryStore()
			m := NewManager(srv.URL, store, WithoutProactiveRefresh())
			seeded := seedNearExpiry(t, api, store)

			_, err := m.EnsureValidToken(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)

			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.NotErrorIs(t, err, ErrSessionExpired)
			}

			tokens, err := store.Load()
			require.NoError(t, err)

			if tt.cleared {
				assert.Nil(t, tokens)
				return
			}

			require.NotNil(t, tokens)
			assert.Equal(t, seeded.RefreshToken, tokens.RefreshToken)
		})
	}
}

func TestEnsureValidToken_RateLimitedRefreshRecovers(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.status.Store(http.StatusTooManyRequests)

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())
	stale := seedNearExpiry(t, api, store)

	_, err := m.EnsureValidToken(context.Background())
	require.ErrorIs(t, err, ErrRefreshRateLimited)

	api.status.Store(0)

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, stale.AccessToken, token)
	assert.Equal(t, int32(2), api.refreshes.Load())
}

func TestTransport_ConcurrentUnauthorizedReplayAfterSingleRefresh(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.delay = 100 * time.Millisecond
	api.strict = true

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())

	// valid signature and expiry, but the server no longer accepts it
	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	client := m.Client()

	const n = 10

	var wg sync.WaitGroup
	codes := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			resp, err := client.Get(srv.URL + "/api/auth/me")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			codes[i] = resp.StatusCode
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), api.refreshes.Load())
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestTransport_ReplaysRequestBody(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.strict = true

	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())
	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/echo", bytes.NewBufferString(`{"qty":2}`))
	require.NoError(t, err)

	resp, err := m.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"qty":2}`, string(body))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{`{"qty":2}`, `{"qty":2}`}, api.bodies)
}

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

func TestTransport_ClosesBodyWhenTokenUnavailable(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.failAuth.Store(true)

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())
	seedNearExpiry(t, api, store)

	body := &trackedBody{Reader: bytes.NewBufferString(`{"qty":1}`)}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/echo", body)
	require.NoError(t, err)

	resp, err := NewTransport(m, nil).RoundTrip(req)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, resp)
	assert.True(t, body.closed.Load())

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Empty(t, api.bodies)
}

func TestTransport_RefreshFailureRejectsAllQueued(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.strict = true
	api.failAuth.Store(true)
	api.delay = 200 * time.Millisecond

	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())
	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	client := m.Client()

	var wg sync.WaitGroup
	errs := make([]error, 5)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			resp, err := client.Get(srv.URL + "/api/auth/me")
			if err == nil {
				resp.Body.Close()
			}
			errs[i] = err
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), api.refreshes.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}

	tokens, _ := store.Load()
	assert.Nil(t, tokens)
}

func TestTransport_AnonymousRequestPassesThrough(t *testing.T) {
	api, srv := newFakeAPI(t)
	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())

	resp, err := m.Client().Get(srv.URL + "/api/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(0), api.refreshes.Load())
}

func TestProactiveRefresh_PastThresholdRefreshesImmediately(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.loginTTL = newCodec(t, 9*time.Minute)

	m := NewManager(srv.URL, NewMemoryStore())
	t.Cleanup(m.Close)

	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return api.refreshes.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCurrentUser(t *testing.T) {
	_, srv := newFakeAPI(t)
	m := NewManager(srv.URL, NewMemoryStore(), WithoutProactiveRefresh())

	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	u, err := m.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestLogout_ClearsTokens(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	m := NewManager(srv.URL, store, WithoutProactiveRefresh())

	_, err := m.Login(context.Background(), "ann@x.com", "abc123")
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background()))

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileStore(path)

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tokens)

	expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(&Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)
	assert.True(t, expires.Equal(loaded.ExpiresAt))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")

	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

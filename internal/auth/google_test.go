package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGoogleProvider(t *testing.T) *GoogleProvider {
	t.Helper()

	p, err := NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "http://localhost:8080/api/auth/google/callback",
		StateSecret:  "state-secret-for-tests",
	})
	require.NoError(t, err)

	return p
}

func TestNewGoogleProvider_RequiresCredentials(t *testing.T) {
	_, err := NewGoogleProvider(GoogleConfig{StateSecret: "x"})
	assert.Error(t, err)

	_, err = NewGoogleProvider(GoogleConfig{ClientID: "id", ClientSecret: "secret"})
	assert.Error(t, err)
}

func TestGoogleProvider_BeginAuth(t *testing.T) {
	p := newTestGoogleProvider(t)

	w := httptest.NewRecorder()
	authURL, err := p.BeginAuth(w, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.NotEmpty(t, parsed.Query().Get("state"))
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestGoogleProvider_CompleteAuth_StateMismatch(t *testing.T) {
	p := newTestGoogleProvider(t)

	begin := httptest.NewRecorder()
	_, err := p.BeginAuth(begin, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=forged&code=abc", nil)
	for _, c := range begin.Result().Cookies() {
		req.AddCookie(c)
	}

	_, err = p.CompleteAuth(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGoogleProvider_CompleteAuth_NoCookie(t *testing.T) {
	p := newTestGoogleProvider(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=x&code=abc", nil)

	_, err := p.CompleteAuth(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestProfileFromGoogle_VerifiedEmail(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		verified bool
	}{
		{"userinfo v2 verified", map[string]any{"verified_email": true}, true},
		{"openid connect verified", map[string]any{"email_verified": true}, true},
		{"unverified", map[string]any{"verified_email": false}, false},
		{"missing claim", map[string]any{}, false},
		{"string is not a verification", map[string]any{"verified_email": "true"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profileFromGoogle(goth.User{UserID: "g-1", Email: "ann@x.com", RawData: tt.raw})

			assert.Equal(t, tt.verified, p.EmailVerified)
			assert.Equal(t, "g-1", p.ProviderID)
			assert.Equal(t, "ann@x.com", p.Email)
		})
	}
}

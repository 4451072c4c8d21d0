package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/google"

	"codeberg.org/storefront/server/storefront/users"
)

const (
	stateCookieName = "storefront_oauth"
	stateMaxAge     = 300
	stateKey        = "state"
	gothSessionKey  = "goth_session"
)

var ErrInvalidState = errors.New("oauth state mismatch")

// federated login provider driving the redirect and callback legs
type OAuthProvider interface {
	// stores the flow state in a cookie and returns the consent URL
	BeginAuth(w http.ResponseWriter, r *http.Request) (string, error)
	// validates state, exchanges the code and returns the profile
	CompleteAuth(w http.ResponseWriter, r *http.Request) (Profile, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	StateSecret  string
	Secure       bool
}

// google OAuth provider backed by goth, with flow state in a short-lived cookie
type GoogleProvider struct {
	provider goth.Provider
	state    *sessions.CookieStore
}

func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	if cfg.StateSecret == "" {
		return nil, fmt.Errorf("a state cookie secret is required")
	}

	state := sessions.NewCookieStore([]byte(cfg.StateSecret))

	// 5 minutes, enough for OAuth flow
	state.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &GoogleProvider{
		provider: google.New(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL, "email", "profile"),
		state:    state,
	}, nil
}

func (g *GoogleProvider) BeginAuth(w http.ResponseWriter, r *http.Request) (string, error) {
	state := uuid.NewString()

	sess, err := g.provider.BeginAuth(state)
	if err != nil {
		return "", fmt.Errorf("begin oauth: %w", err)
	}

	authURL, err := sess.GetAuthURL()
	if err != nil {
		return "", fmt.Errorf("build auth url: %w", err)
	}

	cookie, _ := g.state.New(r, stateCookieName)
	cookie.Values[stateKey] = state
	cookie.Values[gothSessionKey] = sess.Marshal()

	if err := cookie.Save(r, w); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}

	return authURL, nil
}

func (g *GoogleProvider) CompleteAuth(w http.ResponseWriter, r *http.Request) (Profile, error) {
	cookie, err := g.state.Get(r, stateCookieName)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	expected, _ := cookie.Values[stateKey].(string)
	raw, _ := cookie.Values[gothSessionKey].(string)

	// state is single use
	cookie.Options.MaxAge = -1
	_ = cookie.Save(r, w)

	params := r.URL.Query()
	if expected == "" || raw == "" || params.Get("state") != expected {
		return Profile{}, ErrInvalidState
	}

	sess, err := g.provider.UnmarshalSession(raw)
	if err != nil {
		return Profile{}, fmt.Errorf("restore oauth session: %w", err)
	}

	if _, err := sess.Authorize(g.provider, params); err != nil {
		return Profile{}, fmt.Errorf("exchange oauth code: %w", err)
	}

	gu, err := g.provider.FetchUser(sess)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch oauth user: %w", err)
	}

	profile := profileFromGoogle(gu)
	if !profile.EmailVerified {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnverifiedEmail, gu.Email)
	}

	return profile, nil
}

// maps the userinfo response; verified_email comes from the raw payload
func profileFromGoogle(gu goth.User) Profile {
	verified, _ := gu.RawData["verified_email"].(bool)
	if !verified {
		// openid connect spelling
		verified, _ = gu.RawData["email_verified"].(bool)
	}

	return Profile{
		Provider:      users.ProviderGoogle,
		ProviderID:    gu.UserID,
		Email:         gu.Email,
		Name:          gu.Name,
		AvatarURL:     gu.AvatarURL,
		EmailVerified: verified,
	}
}

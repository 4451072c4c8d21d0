package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"codeberg.org/storefront/server/storefront/users"
)

const (
	sessionCookieName = "storefront_session"
	sessionUserKey    = "user_id"
	sessionMaxAge     = 7 * 24 * 60 * 60
)

// legacy cookie-session path: serializes an identity id and resolves it back through the store
type SessionManager struct {
	cookies sessions.Store
	users   users.Store
}

func NewSessionManager(secret string, secure bool, store users.Store) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set when legacy sessions are enabled")
	}

	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionManager{cookies: cookies, users: store}, nil
}

// stores the identity reference in the session cookie
func (m *SessionManager) Serialize(w http.ResponseWriter, r *http.Request, u *users.User) error {
	session, err := m.cookies.Get(r, sessionCookieName)
	if err != nil && session == nil {
		return fmt.Errorf("load session: %w", err)
	}

	session.Values[sessionUserKey] = u.ID

	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// resolves the identity stored in the session cookie
func (m *SessionManager) Deserialize(ctx context.Context, r *http.Request) (*users.User, error) {
	session, err := m.cookies.Get(r, sessionCookieName)
	if err != nil {
		// undecodable cookie (rotated secret, tampering) counts as no session
		return nil, fail(ReasonMissingSession, err)
	}

	id, _ := session.Values[sessionUserKey].(string)
	if id == "" {
		return nil, fail(ReasonMissingSession, nil)
	}

	u, err := m.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fail(ReasonIdentityNotFound, nil)
		}

		return nil, fmt.Errorf("find session user: %w", err)
	}

	return active(u)
}

// expires the session cookie
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := m.cookies.Get(r, sessionCookieName)
	if err != nil && session == nil {
		return nil
	}

	delete(session.Values, sessionUserKey)
	session.Options.MaxAge = -1

	return session.Save(r, w)
}

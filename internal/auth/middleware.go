package auth

import (
	"github.com/gin-gonic/gin"

	apierrors "codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/internal/metrics"
	"codeberg.org/storefront/server/storefront/users"
)

const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// gate names used in metrics and logs
const (
	GateBearer      = "bearer"
	GateAdmin       = "admin"
	GateSelfOrAdmin = "self_or_admin"
	GateSession     = "session"
	GateEither      = "either"
)

// assembles the authorization gates from injected strategies
type Authenticator struct {
	bearer   *BearerStrategy
	sessions *SessionManager
	metrics  *metrics.Metrics
}

// sessions may be nil when the legacy session path is disabled
func NewAuthenticator(bearer *BearerStrategy, sessions *SessionManager, m *metrics.Metrics) *Authenticator {
	return &Authenticator{bearer: bearer, sessions: sessions, metrics: m}
}

func (a *Authenticator) Sessions() *SessionManager {
	return a.sessions
}

// rejects requests without a valid bearer token (401)
func (a *Authenticator) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticateBearer(c, GateBearer) {
			return
		}

		c.Next()
	}
}

// requires a bearer identity with the admin role (401, then 403)
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticateBearer(c, GateAdmin) {
			return
		}

		u, _ := CurrentUser(c)
		if !u.IsAdmin() {
			a.deny(c, GateAdmin, "admin access required")
			return
		}

		c.Next()
	}
}

// requires a bearer identity that owns the :param resource or is an admin
func (a *Authenticator) RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticateBearer(c, GateSelfOrAdmin) {
			return
		}

		u, _ := CurrentUser(c)
		if u.ID != c.Param(param) && !u.IsAdmin() {
			a.deny(c, GateSelfOrAdmin, "you can only access your own account")
			return
		}

		c.Next()
	}
}

// attaches the identity when a valid bearer token is present, never rejects
func (a *Authenticator) OptionalBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := ExtractBearer(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		u, claims, err := a.bearer.Authenticate(c.Request.Context(), token)
		if err == nil {
			attach(c, u, claims)
		} else if !isFailure(err) {
			logger.Warn("optional bearer lookup failed",
				"path", c.Request.URL.Path,
				"error", err,
			)
		}

		c.Next()
	}
}

// legacy cookie-session gate
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticateSession(c) {
			return
		}

		c.Next()
	}
}

// tries the session cookie first, then falls back to the bearer token
func (a *Authenticator) RequireEither() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.sessions != nil {
			u, err := a.sessions.Deserialize(c.Request.Context(), c.Request)
			if err == nil {
				observe(a.metrics, StrategySession, nil)
				attach(c, u, nil)
				c.Next()
				return
			}

			if !isFailure(err) {
				a.internal(c, err)
				return
			}
		}

		if !a.authenticateBearer(c, GateEither) {
			return
		}

		c.Next()
	}
}

func (a *Authenticator) authenticateBearer(c *gin.Context, gate string) bool {
	token, _ := ExtractBearer(c.GetHeader("Authorization"))

	u, claims, err := a.bearer.Authenticate(c.Request.Context(), token)
	if err != nil {
		a.reject(c, gate, err)
		return false
	}

	attach(c, u, claims)
	return true
}

func (a *Authenticator) authenticateSession(c *gin.Context) bool {
	if a.sessions == nil {
		a.reject(c, GateSession, fail(ReasonMissingSession, nil))
		return false
	}

	u, err := a.sessions.Deserialize(c.Request.Context(), c.Request)
	observe(a.metrics, StrategySession, err)

	if err != nil {
		a.reject(c, GateSession, err)
		return false
	}

	attach(c, u, nil)
	return true
}

// 401 for strategy failures, 500 for anything else
func (a *Authenticator) reject(c *gin.Context, gate string, err error) {
	if f, ok := AsFailure(err); ok {
		logger.Debug("authentication rejected",
			"gate", gate,
			"reason", f.Reason,
			"path", c.Request.URL.Path,
		)

		apierrors.UnauthorizedReason(c, string(f.Reason), f.Message())
		c.Abort()
		return
	}

	a.internal(c, err)
}

func (a *Authenticator) internal(c *gin.Context, err error) {
	apierrors.InternalError(c, "authentication failed", err)
	c.Abort()
}

func (a *Authenticator) deny(c *gin.Context, gate, message string) {
	a.metrics.AuthorizationDenied(gate)

	logger.FromContext(c.Request.Context()).Info("authorization denied",
		"gate", gate,
		"path", c.Request.URL.Path,
	)

	apierrors.Forbidden(c, message)
	c.Abort()
}

func attach(c *gin.Context, u *users.User, claims *Claims) {
	c.Set(ContextUser, u)
	c.Set(ContextUserID, u.ID)

	// downstream handlers log through logger.FromContext with the caller already tagged
	if c.Request != nil {
		scoped := logger.With("user_id", u.ID, "role", u.Role)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), scoped))
	}

	if claims != nil {
		c.Set(ContextClaims, claims)
	}
}

// returns the identity attached by one of the gates
func CurrentUser(c *gin.Context) (*users.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}

	u, ok := v.(*users.User)
	return u, ok && u != nil
}

// extracts user_id from context after a gate ran
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserID)

	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	return id, ok
}

// returns the verified token claims; absent for session-resolved identities
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}

	claims, ok := v.(*Claims)
	return claims, ok
}

package auth

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/internal/password"
	"codeberg.org/storefront/server/internal/revocation"
	"codeberg.org/storefront/server/storefront/users"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// everything the auth endpoints need, assembled by the server
type Dependencies struct {
	Users    users.Store
	Codec    *auth.Codec
	Local    *auth.LocalStrategy
	OAuth    *auth.OAuthStrategy
	Sessions *auth.SessionManager

	// nil when Google sign-in is not configured
	Google auth.OAuthProvider

	// nil when token revocation is disabled
	Revoker revocation.Store

	FrontendURL string
}

// SignupHandler godoc
// @Summary Create an account
// @Description Register a local account with email and password. Any client-supplied role is ignored.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 201 {object} SignupResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/signup [post]
func SignupHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		email := strings.ToLower(strings.TrimSpace(req.Email))

		if name == "" {
			errors.InvalidField(c, "name is required")
			return
		}

		if !emailRegex.MatchString(email) {
			errors.InvalidField(c, "please provide a valid email address")
			return
		}

		if err := password.ValidateStrength(req.Password); err != nil {
			errors.InvalidField(c, password.Reason(err))
			return
		}

		if req.Role != "" && req.Role != string(users.RoleUser) {
			logger.Warn("ignoring client-supplied role on signup",
				"email", email,
				"requested_role", req.Role,
			)
		}

		hash, err := password.Hash(req.Password)
		if err != nil {
			errors.InternalError(c, "failed to create account", err)
			return
		}

		user := &users.User{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         users.RoleUser,
			Provider:     users.ProviderLocal,
			IsActive:     true,
		}

		if err := deps.Users.Create(c.Request.Context(), user); err != nil {
			if stderrors.Is(err, users.ErrEmailTaken) {
				errors.Conflict(c, "an account with this email already exists")
				return
			}

			errors.InternalError(c, "failed to create account", err)
			return
		}

		logger.Info("account created", "user_id", user.ID, "email", user.Email)

		c.JSON(http.StatusCreated, SignupResponse{
			Message: "account created successfully",
			User:    user.Sanitized(),
		})
	}
}

// LoginHandler godoc
// @Summary Log in with email and password
// @Description Runs the local strategy and issues an access/refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/login [post]
func LoginHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		user, err := deps.Local.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if f, ok := auth.AsFailure(err); ok {
				logger.Info("login rejected", "email", req.Email, "reason", f.Reason)
				errors.UnauthorizedReason(c, string(f.Reason), f.Message())
				return
			}

			errors.InternalError(c, "login failed", err)
			return
		}

		tokens, err := deps.Codec.IssuePair(auth.IdentityOf(user))
		if err != nil {
			errors.InternalError(c, "failed to issue tokens", err)
			return
		}

		if deps.Sessions != nil {
			if err := deps.Sessions.Serialize(c.Writer, c.Request, user); err != nil {
				logger.ErrorErr(err, "failed to write legacy session", "user_id", user.ID)
			}
		}

		logger.Info("user logged in", "user_id", user.ID, "strategy", auth.StrategyLocal)

		c.JSON(http.StatusOK, LoginResponse{User: user, Tokens: tokens})
	}
}

// RefreshHandler godoc
// @Summary Refresh the access token
// @Description Exchanges a refresh token for a new access token. The refresh token is not rotated.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} RefreshResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/auth/refresh-token [post]
func RefreshHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest

		// a missing or unparsable body is treated as a missing token
		_ = c.ShouldBindJSON(&req)

		if req.RefreshToken == "" {
			errors.BadRequest(c, "refresh token is required", nil)
			return
		}

		claims, err := deps.Codec.VerifyRefresh(req.RefreshToken)
		if err != nil {
			errors.UnauthorizedReason(c, string(auth.ReasonInvalidOrExpiredToken), "invalid or expired refresh token")
			return
		}

		user, err := deps.Users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to refresh token", err)
			return
		}

		if !user.IsActive {
			errors.UnauthorizedReason(c, string(auth.ReasonAccountDisabled), "this account has been disabled")
			return
		}

		access, err := deps.Codec.SignAccess(auth.IdentityOf(user))
		if err != nil {
			errors.InternalError(c, "failed to issue token", err)
			return
		}

		c.JSON(http.StatusOK, RefreshResponse{
			AccessToken: access,
			ExpiresIn:   int64(deps.Codec.AccessTTL().Seconds()),
		})
	}
}

// GetCurrentUserHandler godoc
// @Summary Get current user
// @Description Get authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/auth/me [get]
// @Security BearerAuth
func GetCurrentUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user.Sanitized()})
	}
}

// UpdateProfileHandler godoc
// @Summary Update user profile
// @Description Update authenticated user's name and avatar
// @Tags auth
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Profile update"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/auth/me [put]
// @Security BearerAuth
func UpdateProfileHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			errors.Unauthorized(c, "")
			return
		}

		var req UpdateProfileRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		user, err := deps.Users.UpdateProfile(c.Request.Context(), userID, strings.TrimSpace(req.Name), req.AvatarURL)
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				errors.NotFound(c, "user")
				return
			}

			errors.InternalError(c, "failed to update profile", err)
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user.Sanitized()})
	}
}

// LogoutHandler godoc
// @Summary Logout
// @Description Ends the client session. When revocation is enabled the presented access token is deny-listed until it expires.
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/auth/logout [post]
// @Security BearerAuth
func LogoutHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Revoker != nil {
			if claims, ok := auth.CurrentClaims(c); ok && claims.ExpiresAt != nil {
				if err := deps.Revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
					errors.InternalError(c, "failed to revoke token", err)
					return
				}
			}
		}

		if deps.Sessions != nil {
			if err := deps.Sessions.Clear(c.Writer, c.Request); err != nil {
				logger.FromContext(c.Request.Context()).Error("failed to clear legacy session", "error", err)
			}
		}

		logger.FromContext(c.Request.Context()).Info("user logged out")

		c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
	}
}

// SessionHandler godoc
// @Summary Current identity from session or bearer token
// @Description Legacy endpoint resolving the caller through the cookie session first, then the bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/auth/session [get]
func SessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user.Sanitized()})
	}
}

// BeginGoogleAuthHandler godoc
// @Summary Start Google sign-in
// @Description Redirects the browser to the Google consent screen
// @Tags auth
// @Success 302 {string} string "Redirect to Google"
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/auth/google [get]
func BeginGoogleAuthHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Google == nil {
			errors.OAuthDisabled(c)
			return
		}

		authURL, err := deps.Google.BeginAuth(c.Writer, c.Request)
		if err != nil {
			logger.ErrorErr(err, "failed to begin google auth")
			redirectError(c, deps.FrontendURL, oauthErrFailed)
			return
		}

		c.Redirect(http.StatusFound, authURL)
	}
}

// GoogleCallbackHandler godoc
// @Summary Google sign-in callback
// @Description Resolves the Google profile to an account and redirects to the frontend with the token pair in the query string
// @Tags auth
// @Success 302 {string} string "Redirect to frontend"
// @Router /api/auth/google/callback [get]
func GoogleCallbackHandler(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Google == nil {
			redirectError(c, deps.FrontendURL, oauthErrDisabled)
			return
		}

		if denied := c.Query("error"); denied != "" {
			logger.Info("google sign-in cancelled", "error", denied)
			redirectError(c, deps.FrontendURL, oauthErrFailed)
			return
		}

		profile, err := deps.Google.CompleteAuth(c.Writer, c.Request)
		if err != nil {
			code := oauthErrFailed
			switch {
			case stderrors.Is(err, auth.ErrInvalidState):
				code = oauthErrInvalidState
			case stderrors.Is(err, auth.ErrUnverifiedEmail):
				code = oauthErrUnverified
			}

			logger.Warn("google callback failed", "error", err, "code", code)
			redirectError(c, deps.FrontendURL, code)
			return
		}

		user, err := deps.OAuth.Resolve(c.Request.Context(), profile)
		if err != nil {
			code := oauthErrServer

			if f, ok := auth.AsFailure(err); ok && f.Reason == auth.ReasonAccountDisabled {
				code = oauthErrAccountDisabled
			} else if stderrors.Is(err, auth.ErrIncompleteProfile) {
				code = oauthErrFailed
			} else if stderrors.Is(err, auth.ErrUnverifiedEmail) {
				code = oauthErrUnverified
			} else {
				logger.ErrorErr(err, "failed to resolve google profile", "email", profile.Email)
			}

			redirectError(c, deps.FrontendURL, code)
			return
		}

		tokens, err := deps.Codec.IssuePair(auth.IdentityOf(user))
		if err != nil {
			logger.ErrorErr(err, "failed to issue tokens", "user_id", user.ID)
			redirectError(c, deps.FrontendURL, oauthErrServer)
			return
		}

		if deps.Sessions != nil {
			if err := deps.Sessions.Serialize(c.Writer, c.Request, user); err != nil {
				logger.ErrorErr(err, "failed to write legacy session", "user_id", user.ID)
			}
		}

		logger.Info("user logged in", "user_id", user.ID, "strategy", auth.StrategyGoogle)

		q := url.Values{}
		q.Set("token", tokens.AccessToken)
		q.Set("refreshToken", tokens.RefreshToken)

		c.Redirect(http.StatusFound, frontendURL(deps.FrontendURL, "/auth/callback", q))
	}
}

func redirectError(c *gin.Context, base, code string) {
	c.Redirect(http.StatusFound, frontendURL(base, "/login", url.Values{"error": {code}}))
}

func frontendURL(base, path string, q url.Values) string {
	return strings.TrimRight(base, "/") + path + "?" + q.Encode()
}

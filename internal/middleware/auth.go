package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	iauth "github.com/Cyb3rGhoul/dsa-brother-bot/internal/auth"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
	appErrors "github.com/Cyb3rGhoul/dsa-brother-bot/pkg/errors"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/response"
)

// Context keys populated by the authentication gates.
const (
	CtxUserKey         = "authUser"
	CtxSessionKey      = "authSession"
	CtxTokenKey        = "authToken"
	CtxRefreshTokenKey = "authRefreshToken"
	CtxUserIDKey       = "userID"
	CtxSessionIDKey    = "sessionID"
)

// Cookie names used as a fallback transport for the bearer tokens.
const (
	AccessTokenCookie  = "token"
	RefreshTokenCookie = "refreshToken"
)

// Capability is a typed placeholder for role-like restrictions. No user
// carries capabilities today; RequireCapabilities is the extension point.
type Capability string

// RequireAuth gates a request on a live access token. It verifies the JWT,
// cross-checks the session store, and confirms the owning user is active.
// A valid token presented for an inactive user poisons the session so that
// later attempts die at the session lookup.
func RequireAuth(accounts *iauth.AccountService, tokens *iauth.TokenService, sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, session, raw, appErr := resolveAccessIdentity(c, accounts, tokens, sessions)
		if appErr != nil {
			response.Error(c, appErr)
			c.Abort()
			return
		}

		attachIdentity(c, user, session)
		c.Set(CtxTokenKey, raw)
		c.Next()
	}
}

// OptionalAuth performs the same checks as RequireAuth but proceeds without
// identity on any failure. Used by endpoints that personalise behaviour for
// logged-in callers without requiring login.
func OptionalAuth(accounts *iauth.AccountService, tokens *iauth.TokenService, sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, session, raw, appErr := resolveAccessIdentity(c, accounts, tokens, sessions)
		if appErr == nil {
			attachIdentity(c, user, session)
			c.Set(CtxTokenKey, raw)
		}
		c.Next()
	}
}

func resolveAccessIdentity(c *gin.Context, accounts *iauth.AccountService, tokens *iauth.TokenService, sessions *iauth.SessionService) (*models.User, *models.Session, string, *appErrors.AppError) {
	raw := extractAccessToken(c)
	if raw == "" {
		return nil, nil, "", appErrors.ErrNoToken
	}

	claims, err := tokens.Verify(raw, iauth.TokenCategoryAccess)
	if err != nil {
		if errors.Is(err, iauth.ErrTokenExpired) {
			return nil, nil, "", appErrors.ErrTokenExpired
		}
		return nil, nil, "", appErrors.ErrInvalidToken
	}

	session, err := sessions.FindLiveByAccessToken(raw)
	if err != nil {
		return nil, nil, "", appErrors.ErrSessionInvalid
	}

	user, err := accounts.GetByID(claims.UserID)
	if err != nil || !user.IsActive {
		// Poison the session so later attempts fail at the lookup above.
		_ = sessions.Deactivate(session.ID)
		return nil, nil, "", appErrors.ErrAccountInactive
	}

	return user, session, raw, nil
}

type refreshRequestBody struct {
	RefreshToken string `json:"refresh_token"`
}

// RequireRefreshToken mirrors RequireAuth but keys on the refresh token,
// sourced from the JSON body or cookie, with the same
// deactivate-on-inactive-user side effect.
func RequireRefreshToken(accounts *iauth.AccountService, tokens *iauth.TokenService, sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractRefreshToken(c)
		if raw == "" {
			response.Error(c, appErrors.ErrNoRefreshToken)
			c.Abort()
			return
		}

		claims, err := tokens.Verify(raw, iauth.TokenCategoryRefresh)
		if err != nil {
			if errors.Is(err, iauth.ErrTokenExpired) {
				response.Error(c, appErrors.ErrRefreshTokenExpired)
			} else {
				response.Error(c, appErrors.ErrInvalidRefreshToken)
			}
			c.Abort()
			return
		}

		session, err := sessions.FindLiveByRefreshToken(raw)
		if err != nil {
			response.Error(c, appErrors.ErrRefreshSessionInvalid)
			c.Abort()
			return
		}

		user, err := accounts.GetByID(claims.UserID)
		if err != nil || !user.IsActive {
			_ = sessions.Deactivate(session.ID)
			response.Error(c, appErrors.ErrAccountInactive)
			c.Abort()
			return
		}

		attachIdentity(c, user, session)
		c.Set(CtxRefreshTokenKey, raw)
		c.Next()
	}
}

// RequireCapabilities runs after an authentication gate and restricts the
// request to users holding every listed capability. With no capabilities
// listed it only asserts that identity is attached.
func RequireCapabilities(required ...Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		granted := userCapabilities(user)
		for _, capability := range required {
			if _, ok := granted[capability]; !ok {
				response.Error(c, appErrors.ErrForbidden)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// userCapabilities returns the capability set for a user. Uniform (empty)
// for every account today.
func userCapabilities(_ *models.User) map[Capability]struct{} {
	return map[Capability]struct{}{}
}

// CurrentUser returns the authenticated user attached by a gate, if any.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentSession returns the session attached by a gate, if any.
func CurrentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(CtxSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}

func attachIdentity(c *gin.Context, user *models.User, session *models.Session) {
	c.Set(CtxUserKey, user)
	c.Set(CtxSessionKey, session)
	c.Set(CtxUserIDKey, user.ID)
	c.Set(CtxSessionIDKey, session.ID)
}

func extractAccessToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}

	return ""
}

func extractRefreshToken(c *gin.Context) string {
	var body refreshRequestBody
	// ShouldBindBodyWith buffers the body so the handler can re-bind it.
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil {
		if token := strings.TrimSpace(body.RefreshToken); token != "" {
			return token
		}
	}

	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}

	return ""
}

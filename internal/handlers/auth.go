package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/Cyb3rGhoul/dsa-brother-bot/internal/auth"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/middleware"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/models"
	appErrors "github.com/Cyb3rGhoul/dsa-brother-bot/pkg/errors"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/metrics"
	"github.com/Cyb3rGhoul/dsa-brother-bot/pkg/response"
)

// AuthHandler manages the account and session lifecycle endpoints.
type AuthHandler struct {
	accounts *iauth.AccountService
	sessions *iauth.SessionService
	tokens   *iauth.TokenService
	// secureCookies toggles Secure + SameSite=Strict on auth cookies.
	secureCookies bool
}

func NewAuthHandler(accounts *iauth.AccountService, sessions *iauth.SessionService, tokens *iauth.TokenService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		sessions:      sessions,
		tokens:        tokens,
		secureCookies: secureCookies,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,password"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=2,max=50"`
	Avatar       *string `json:"avatar" validate:"omitempty,url"`
	GeminiAPIKey *string `json:"gemini_api_key"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.Register(iauth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		if errors.Is(err, iauth.ErrEmailTaken) {
			response.Error(c, appErrors.ErrEmailTaken)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	pair, _, err := h.sessions.Create(user.ID, sessionMetadata(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.setAuthCookies(c, pair)

	response.Success(c, http.StatusCreated, "User registered successfully", gin.H{
		"user":         userPayload(user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    h.tokens.AccessTTL().String(),
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, iauth.ErrAccountDisabled):
			response.Error(c, appErrors.ErrAccountDeactivated)
		case errors.Is(err, iauth.ErrInvalidCredentials):
			response.Error(c, appErrors.ErrInvalidCredentials)
		default:
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		}
		return
	}

	pair, _, err := h.sessions.Create(user.ID, sessionMetadata(c))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	h.setAuthCookies(c, pair)

	response.Success(c, http.StatusOK, "Login successful", gin.H{
		"user":         userPayload(user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    h.tokens.AccessTTL().String(),
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	session := middleware.CurrentSession(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.Deactivate(session.ID); err != nil && !errors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.clearAuthCookies(c)

	response.Success(c, http.StatusOK, "Logout successful", nil)
}

// POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	revoked, err := h.sessions.DeactivateAllForUser(user.ID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.clearAuthCookies(c)

	response.Success(c, http.StatusOK, "Logged out from all devices", gin.H{
		"sessionsRevoked": revoked,
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	session := middleware.CurrentSession(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pair, err := h.sessions.Rotate(session)
	if err != nil {
		// The session can be revoked between the refresh gate and the rotate
		// write, e.g. by a concurrent logout-all. Treat it as a dead session.
		if errors.Is(err, iauth.ErrSessionNotFound) {
			response.Error(c, appErrors.ErrRefreshSessionInvalid)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	h.setAuthCookies(c, pair)

	response.Success(c, http.StatusOK, "Token refreshed successfully", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    h.tokens.AccessTTL().String(),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, "User data retrieved successfully", gin.H{
		"user": userPayload(user),
	})
}

// GET /api/auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	user := middleware.CurrentUser(c)
	current := middleware.CurrentSession(c)
	if user == nil || current == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.sessions.ListLiveForUser(user.ID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	payload := make([]gin.H, 0, len(sessions))
	for _, session := range sessions {
		payload = append(payload, gin.H{
			"id":        session.ID,
			"createdAt": session.CreatedAt,
			"expiresAt": session.ExpiresAt,
			"userAgent": session.UserAgent,
			"ipAddress": session.IPAddress,
			"isCurrent": session.ID == current.ID,
		})
	}

	response.Success(c, http.StatusOK, "Sessions retrieved successfully", gin.H{
		"sessions": payload,
	})
}

// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.accounts.UpdateProfile(user.ID, iauth.ProfileUpdate{
		Name:         req.Name,
		Avatar:       req.Avatar,
		GeminiAPIKey: req.GeminiAPIKey,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, "Profile updated successfully", gin.H{
		"user": userPayload(updated),
	})
}

// GET /api/auth/profile/chat
//
// Returns the profile with the decrypted Gemini API key so the browser can
// call the LLM directly. The key travels only to its owner over an
// authenticated request.
func (h *AuthHandler) ChatProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	key, err := h.accounts.GeminiKey(user)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, "Profile retrieved successfully", gin.H{
		"user":         userPayload(user),
		"geminiApiKey": key,
		"hasApiKey":    key != "",
	})
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"avatar":    user.Avatar,
		"lastLogin": user.LastLogin,
		"createdAt": user.CreatedAt,
	}
}

func sessionMetadata(c *gin.Context) iauth.SessionMetadata {
	return iauth.SessionMetadata{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, pair iauth.TokenPair) {
	if h.secureCookies {
		c.SetSameSite(http.SameSiteStrictMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}

	accessMaxAge := int(h.tokens.AccessTTL() / time.Second)
	refreshMaxAge := int(h.tokens.RefreshTTL() / time.Second)

	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, accessMaxAge, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken, refreshMaxAge, "/", "", h.secureCookies, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
}

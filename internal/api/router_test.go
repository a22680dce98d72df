package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/app"
	iauth "github.com/Cyb3rGhoul/dsa-brother-bot/internal/auth"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/database/testutil"
)

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	cfg := &app.Config{
		Environment: "test",
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				AccessSecret:  "router-access-secret",
				RefreshSecret: "router-refresh-secret",
				Issuer:        "dsa-brother-bot",
				AccessTTL:     15 * time.Minute,
				RefreshTTL:    7 * 24 * time.Hour,
			},
			EncryptionKey: "0123456789abcdef0123456789abcdef",
		},
	}

	tokens, err := iauth.NewTokenService(cfg.TokenConfig())
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, tokens, cfg.SessionConfig())
	require.NoError(t, err)
	accounts, err := iauth.NewAccountService(db, cfg.AccountConfig())
	require.NoError(t, err)

	router, err := NewRouter(db, cfg, accounts, tokens, sessions)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func registerUser(t *testing.T, router *gin.Engine, email string) (accessToken, refreshToken string) {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":"password1","name":"Test User"}`, email)
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	accessToken, _ = env.Data["accessToken"].(string)
	refreshToken, _ = env.Data["refreshToken"].(string)
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, refreshToken)
	return accessToken, refreshToken
}

func TestRegisterLogoutLifecycle(t *testing.T) {
	router := newTestRouter(t)

	access, _ := registerUser(t, router, "alice@example.com")

	rec, env := doJSON(t, router, http.MethodGet, "/api/auth/me", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	user := env.Data["user"].(map[string]any)
	require.Equal(t, "alice@example.com", user["email"])

	rec, env = doJSON(t, router, http.MethodPost, "/api/auth/logout", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logout successful", env.Message)

	// The token is unexpired but the session behind it is gone.
	rec, env = doJSON(t, router, http.MethodGet, "/api/auth/me", access, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired session.", env.Message)
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	body := `{"email":"alice@example.com","password":"password2","name":"Other"}`
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "User already exists with this email", env.Message)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	// Password lacking a digit fails the password rule.
	body := `{"email":"not-an-email","password":"password","name":"A"}`
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Errors)
}

func TestLoginFailureUniformity(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	wrongPassword := `{"email":"alice@example.com","password":"wrong-pass1"}`
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/login", "", wrongPassword)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPasswordMsg := env.Message

	unknownEmail := `{"email":"nobody@example.com","password":"password1"}`
	rec, env = doJSON(t, router, http.MethodPost, "/api/auth/login", "", unknownEmail)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Both failure modes give the same message to prevent email probing.
	require.Equal(t, wrongPasswordMsg, env.Message)
	require.Equal(t, "Invalid email or password", env.Message)
}

func TestLoginSuccess(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	body := `{"email":"Alice@Example.com","password":"password1"}`
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Login successful", env.Message)
	require.NotEmpty(t, env.Data["accessToken"])
}

func TestRefreshRotationInvalidatesOldTokens(t *testing.T) {
	router := newTestRouter(t)

	oldAccess, oldRefresh := registerUser(t, router, "alice@example.com")

	refreshBody := fmt.Sprintf(`{"refresh_token":%q}`, oldRefresh)
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/refresh", "", refreshBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Token refreshed successfully", env.Message)

	newAccess := env.Data["accessToken"].(string)
	require.NotEmpty(t, newAccess)
	require.NotEqual(t, oldAccess, newAccess)

	// The consumed refresh token is stale.
	rec, env = doJSON(t, router, http.MethodPost, "/api/auth/refresh", "", refreshBody)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired refresh token.", env.Message)

	// The new access token works; the rotated-out one does not.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", newAccess, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", oldAccess, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAllScopedToUser(t *testing.T) {
	router := newTestRouter(t)

	aliceAccess, _ := registerUser(t, router, "alice@example.com")
	bobAccess, _ := registerUser(t, router, "bob@example.com")

	// A second live session for Alice via login.
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	aliceSecond := env.Data["accessToken"].(string)

	rec, env = doJSON(t, router, http.MethodPost, "/api/auth/logout-all", aliceAccess, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logged out from all devices", env.Message)
	require.EqualValues(t, 2, env.Data["sessionsRevoked"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", aliceSecond, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bob is unaffected.
	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", bobAccess, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionsListing(t *testing.T) {
	router := newTestRouter(t)

	access, _ := registerUser(t, router, "alice@example.com")

	rec, env := doJSON(t, router, http.MethodGet, "/api/auth/sessions", access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	sessions := env.Data["sessions"].([]any)
	require.Len(t, sessions, 1)
	current := sessions[0].(map[string]any)
	require.Equal(t, true, current["isCurrent"])
}

func TestProfileUpdateAndChatProfile(t *testing.T) {
	router := newTestRouter(t)

	access, _ := registerUser(t, router, "alice@example.com")

	body := `{"name":"Alice B","gemini_api_key":"AIzaSyTestKey123"}`
	rec, env := doJSON(t, router, http.MethodPut, "/api/auth/profile", access, body)
	require.Equal(t, http.StatusOK, rec.Code)
	user := env.Data["user"].(map[string]any)
	require.Equal(t, "Alice B", user["name"])

	rec, env = doJSON(t, router, http.MethodGet, "/api/auth/profile/chat", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "AIzaSyTestKey123", env.Data["geminiApiKey"])
	require.Equal(t, true, env.Data["hasApiKey"])
}

func TestChatLifecycle(t *testing.T) {
	router := newTestRouter(t)

	access, _ := registerUser(t, router, "alice@example.com")

	createBody := `{"messages":[{"text":"How do I reverse a linked list?","is_user":true}]}`
	rec, env := doJSON(t, router, http.MethodPost, "/api/chats", access, createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	chat := env.Data["chat"].(map[string]any)
	chatID := chat["id"].(string)
	require.Equal(t, "How do I reverse a linked list?", chat["title"])

	// Add the bot reply.
	msgBody := `{"text":"Iterate while swapping next pointers.","is_user":false}`
	rec, env = doJSON(t, router, http.MethodPost, "/api/chats/"+chatID+"/messages", access, msgBody)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, env.Data["chat"].(map[string]any)["messageCount"])

	rec, env = doJSON(t, router, http.MethodGet, "/api/chats", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, env.Data["total"])

	rec, env = doJSON(t, router, http.MethodPost, "/api/chats/"+chatID+"/archive", access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Default listing hides archived chats.
	rec, env = doJSON(t, router, http.MethodGet, "/api/chats", access, "")
	require.EqualValues(t, 0, env.Data["total"])
	rec, env = doJSON(t, router, http.MethodGet, "/api/chats?archived=true", access, "")
	require.EqualValues(t, 1, env.Data["total"])

	rec, env = doJSON(t, router, http.MethodGet, "/api/chats/stats", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, env.Data["totalChats"])
	require.EqualValues(t, 1, env.Data["archivedChats"])
	require.EqualValues(t, 2, env.Data["totalMessages"])

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/chats/"+chatID, access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/chats/"+chatID, access, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatOwnershipIsolation(t *testing.T) {
	router := newTestRouter(t)

	aliceAccess, _ := registerUser(t, router, "alice@example.com")
	bobAccess, _ := registerUser(t, router, "bob@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/chats", aliceAccess, `{"title":"Alice's notes"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	chatID := env.Data["chat"].(map[string]any)["id"].(string)

	// Bob cannot see, update, or delete Alice's chat; it looks missing.
	rec, env = doJSON(t, router, http.MethodGet, "/api/chats/"+chatID, bobAccess, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Chat not found", env.Message)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/chats/"+chatID, bobAccess, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/chats/"+chatID, aliceAccess, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChatsRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/chats", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Access denied. No token provided.", env.Message)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, env.Success)
}

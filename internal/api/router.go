package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/app"
	iauth "github.com/Cyb3rGhoul/dsa-brother-bot/internal/auth"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/handlers"
	"github.com/Cyb3rGhoul/dsa-brother-bot/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, cfg *app.Config, accounts *iauth.AccountService, tokens *iauth.TokenService, sessions *iauth.SessionService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if accounts == nil || tokens == nil || sessions == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigin))
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(accounts, sessions, tokens, cfg.IsProduction())

	requireAuth := middleware.RequireAuth(accounts, tokens, sessions)
	requireRefresh := middleware.RequireRefreshToken(accounts, tokens, sessions)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", requireRefresh, authHandler.Refresh)

		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.POST("/logout-all", requireAuth, authHandler.LogoutAll)
		auth.GET("/me", requireAuth, authHandler.Me)
		auth.GET("/sessions", requireAuth, authHandler.Sessions)
		auth.PUT("/profile", requireAuth, authHandler.UpdateProfile)
		auth.GET("/profile/chat", requireAuth, authHandler.ChatProfile)
	}

	chatHandler, err := handlers.NewChatHandler(db)
	if err != nil {
		return nil, err
	}

	chats := r.Group("/api/chats")
	chats.Use(requireAuth)
	{
		chats.GET("", chatHandler.List)
		chats.GET("/stats", chatHandler.Stats)
		chats.POST("", chatHandler.Create)
		chats.GET("/:id", chatHandler.Get)
		chats.PUT("/:id", chatHandler.Update)
		chats.DELETE("/:id", chatHandler.Delete)
		chats.POST("/:id/messages", chatHandler.AddMessage)
		chats.POST("/:id/archive", chatHandler.Archive)
		chats.POST("/:id/unarchive", chatHandler.Unarchive)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

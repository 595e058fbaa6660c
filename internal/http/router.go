// Package http wires the REST and WebSocket surface of the service.
package http

import (
	"net/http"
	"time"

	"github.com/aiforge/aiforge/internal/credentials"
	"github.com/aiforge/aiforge/internal/gateway"
	"github.com/aiforge/aiforge/internal/http/handlers"
	"github.com/aiforge/aiforge/internal/ratelimit"
	"github.com/aiforge/aiforge/internal/registry"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries everything the router needs.
type Deps struct {
	DB        *gorm.DB
	Registry  *registry.Registry
	Store     *credentials.Store
	Gateway   *gateway.Gateway
	Limiter   *ratelimit.Limiter
	JWTSecret string
	JWTExpiry time.Duration
}

// NewRouter builds the gin engine with all routes mounted under /api/v1.
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWTSecret, deps.JWTExpiry)
	mfaHandler := handlers.NewMFAHandler(deps.DB, "aiforge")
	keysHandler := handlers.NewKeysHandler(deps.Store, deps.Registry)
	generateHandler := handlers.NewGenerateHandler(deps.Gateway)
	streamHandler := handlers.NewStreamHandler(deps.Gateway)
	usageHandler := handlers.NewUsageHandler(deps.DB)
	projectsHandler := handlers.NewProjectsHandler(deps.DB, deps.Gateway)
	remindersHandler := handlers.NewRemindersHandler(deps.DB)
	notificationsHandler := handlers.NewNotificationsHandler(deps.DB)
	calendarHandler := handlers.NewCalendarHandler(deps.DB)
	adminHandler := handlers.NewAdminHandler(deps.DB)

	v1 := engine.Group("/api/v1")

	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)

	authed := v1.Group("")
	authed.Use(UserAuthMiddleware(deps.DB, deps.JWTSecret))
	{
		authed.GET("/users/me", authHandler.Me)

		authed.POST("/auth/mfa/setup", mfaHandler.Setup)
		authed.POST("/auth/mfa/enable", mfaHandler.Enable)
		authed.POST("/auth/mfa/disable", mfaHandler.Disable)

		authed.POST("/ai/keys", keysHandler.Save)
		authed.GET("/ai/keys", keysHandler.List)
		authed.DELETE("/ai/keys/:provider", keysHandler.Delete)

		authed.GET("/ai/providers", generateHandler.Providers)

		limited := authed.Group("")
		limited.Use(RateLimitMiddleware(deps.Limiter))
		{
			limited.POST("/ai/generate", generateHandler.Generate)
			limited.GET("/ai/stream", streamHandler.Stream)
			limited.POST("/projects/:id/generate", projectsHandler.GenerateSpec)
		}

		authed.GET("/usage", usageHandler.Overview)

		authed.POST("/projects", projectsHandler.Create)
		authed.GET("/projects", projectsHandler.List)
		authed.GET("/projects/:id", projectsHandler.Get)
		authed.PUT("/projects/:id", projectsHandler.Update)
		authed.DELETE("/projects/:id", projectsHandler.Delete)

		authed.POST("/reminders", remindersHandler.Create)
		authed.GET("/reminders", remindersHandler.List)
		authed.PUT("/reminders/:id", remindersHandler.Update)
		authed.DELETE("/reminders/:id", remindersHandler.Delete)

		authed.GET("/notifications", notificationsHandler.List)
		authed.POST("/notifications/:id/read", notificationsHandler.MarkRead)
		authed.POST("/notifications/read-all", notificationsHandler.MarkAllRead)

		authed.POST("/calendar", calendarHandler.Create)
		authed.GET("/calendar", calendarHandler.List)
		authed.PUT("/calendar/:id", calendarHandler.Update)
		authed.DELETE("/calendar/:id", calendarHandler.Delete)
	}

	admin := authed.Group("/admin")
	admin.Use(AdminOnlyMiddleware())
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PATCH("/users/:id/active", adminHandler.SetUserActive)
		admin.GET("/usage", adminHandler.ListUsage)
	}

	return engine
}

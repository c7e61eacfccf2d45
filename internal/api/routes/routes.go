// Package routes defines the HTTP routes for the chat gateway control plane.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/unifiedui/chat-gateway/internal/api/handlers"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
)

// BasePath prefixes every control-plane route.
const BasePath = "/api/v1/gateway"

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler      *handlers.HealthHandler
	SessionsHandler    *handlers.SessionsHandler
	CredentialsHandler *handlers.CredentialsHandler
	CommandsHandler    *handlers.CommandsHandler
	SettingsHandler    *handlers.SettingsHandler
	EventsHandler      *handlers.EventsHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	v1 := r.Group(BasePath)
	{
		// Health check routes (no auth required)
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		protected := v1.Group("")
		protected.Use(cfg.AuthMiddleware.Authenticate())

		sessions := protected.Group("/sessions")
		{
			sessions.GET("", cfg.SessionsHandler.ListSessions)
			sessions.POST("", cfg.SessionsHandler.StartSession)
			sessions.DELETE("/:id", cfg.SessionsHandler.StopSession)
			sessions.GET("/:id/pairing-code", cfg.SessionsHandler.GetPairingCode)
			sessions.GET("/:id/logs", cfg.SessionsHandler.StreamLogs)
		}

		protected.POST("/credentials", cfg.CredentialsHandler.UploadCredentials)

		commands := protected.Group("/handlers")
		{
			commands.GET("", cfg.CommandsHandler.ListHandlers)
			commands.POST("", cfg.CommandsHandler.SaveHandler)
			commands.GET("/:name", cfg.CommandsHandler.GetHandler)
			commands.DELETE("/:name", cfg.CommandsHandler.DeleteHandler)
		}

		protected.GET("/settings", cfg.SettingsHandler.GetSettings)
		protected.PUT("/settings", cfg.SettingsHandler.UpdateSettings)

		protected.GET("/events", cfg.EventsHandler.StreamEvents)
	}
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware, cors middleware.CORSConfig) {
	// Apply global middleware
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(middleware.NewCORSMiddleware(cors))
	r.NoRoute(middleware.NotFound())

	// Setup routes
	Setup(r, cfg)
}

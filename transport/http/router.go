package http

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/hackledger/ports"
	"github.com/layer-3/hackledger/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the dependencies of the HTTP surface
type RouterConfig struct {
	Auth     *service.AuthService
	Authz    *service.AuthzService
	Events   ports.EventPublisher
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(cfg.Auth, cfg.Authz, cfg.Events)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/identities/:address", handlers.Identity)
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/logout", AuthMiddleware(cfg.Auth), handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(cfg.Auth))
	{
		api.GET("/identities", handlers.Identities)
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
		api.GET("/hackathons/:id/judges", handlers.HackathonJudges)
		api.POST("/sync", handlers.RequestSync)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/auth"
	"github.com/chatcore-io/chatcore-server/internal/config"
	"github.com/chatcore-io/chatcore-server/internal/core"
)

// NewServer builds the HTTP server with the REST, metrics and
// WebSocket routes.
func NewServer(hub *core.Hub, jwtCfg *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := NewWSHandler(hub, logger)
	router.GET("/ws", AuthMiddleware(jwtCfg, logger), ws.Handle)

	handlers := NewHandlers(hub, logger)
	api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
	{
		api.POST("/conversations", handlers.CreateConversation)
		api.GET("/conversations/:id/messages", handlers.History)
		api.POST("/groups", handlers.CreateGroup)
		api.POST("/groups/:id/members", handlers.AddMember)
		api.DELETE("/groups/:id/members/:user_id", handlers.KickMember)
		api.POST("/groups/:id/leave", handlers.LeaveGroup)
		api.PUT("/groups/:id/admin", handlers.ChangeAdmin)
		api.GET("/status", handlers.OnlineStatus)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

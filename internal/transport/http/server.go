package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pingline/pingline-server/internal/auth"
	"github.com/pingline/pingline-server/internal/config"
	"github.com/pingline/pingline-server/internal/core"
	"github.com/pingline/pingline-server/internal/store"
)

// NewServer builds the HTTP server: REST API for auth, users and history,
// plus the websocket endpoint for the real-time protocol.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, hub, logger)
	messageHandlers := NewMessageHandlers(st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authorized := api.Group("", AuthMiddleware(authService, logger))
	authorized.GET("/users", userHandlers.ListUsers)
	authorized.GET("/messages/:user_id", messageHandlers.History)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

package router

import (
	"net/http"

	"harmony-bridge/internal/middleware"
	"harmony-bridge/internal/proxy"
	"harmony-bridge/internal/response"
	"harmony-bridge/internal/types"
	"harmony-bridge/internal/version"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(
	bridgeServer *proxy.BridgeServer,
	configManager types.ConfigManager,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Register global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(configManager.GetCORSConfig()))
	router.Use(middleware.RateLimiter(configManager.GetPerformanceConfig()))

	registerSystemRoutes(router)
	registerBridgeRoutes(router, bridgeServer)

	return router
}

// registerSystemRoutes registers system-level routes
func registerSystemRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{
			"status":  "healthy",
			"version": version.Version,
		})
	})
}

// registerBridgeRoutes registers the translated proxy surface. The
// /api/v0 prefix is an alias kept for clients that expect the LM
// Studio REST layout.
func registerBridgeRoutes(router *gin.Engine, bridgeServer *proxy.BridgeServer) {
	for _, prefix := range []string{"/v1", "/api/v0"} {
		group := router.Group(prefix)
		group.POST("/chat/completions", bridgeServer.HandleChatCompletions)
		group.GET("/models", bridgeServer.HandleModels)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "NOT_FOUND", "message": "Route not found"},
		})
	})
}

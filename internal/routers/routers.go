package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/axpect/staffhub/internal/handlers"
	"github.com/axpect/staffhub/internal/ws"
	"github.com/axpect/staffhub/middleware/jwt"
	logger "github.com/axpect/staffhub/middleware/log"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	gateway *ws.Gateway,
	tokens *jwt.TokenManager,
	lg *logger.Logger,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.Use(logger.GinMiddleware(lg))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket 路由，令牌走 Query 参数
	wsGroup := r.Group("/ws", jwt.AuthMiddleware(tokens))
	{
		wsGroup.GET("/chat/:group_id", gateway.ServeChat)
		wsGroup.GET("/notifications", gateway.ServeNotifications)
	}

	api := r.Group("/api/v1")
	{
		api.POST("/login", authHandler.Login)
	}

	authed := api.Group("", jwt.AuthMiddleware(tokens))
	{
		authed.POST("/groups", groupHandler.CreateGroup)
		authed.POST("/groups/direct", groupHandler.CreateDirect)
		authed.GET("/groups/mine", groupHandler.MyGroups)
		authed.POST("/groups/:group_id/join", groupHandler.Join)
		authed.GET("/groups/:group_id/messages", groupHandler.History)
		authed.POST("/groups/:group_id/read", groupHandler.MarkRead)
	}
}

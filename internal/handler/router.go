package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"pm-system/internal/repository"
	"pm-system/pkg/jwt"
	"pm-system/pkg/logger"
	"pm-system/pkg/response"
	"pm-system/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// HealthCheck 依赖健康检查
type HealthCheck func(ctx context.Context) error

// RouterConfig 路由依赖
type RouterConfig struct {
	BasePath  string
	JWT       *jwt.JWTService
	Users     *UserHandler
	Messages  *MessageHandler
	WebSocket *websocket.Handler     // 可选
	Checks    map[string]HealthCheck // 可选
	Online    func() int             // 可选，在线连接数
}

// NewRouter 创建Gin路由
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())

	router.GET("/health", health(cfg.Checks, cfg.Online))

	v1 := router.Group(cfg.BasePath)
	{
		users := v1.Group("/users")
		{
			// 公开接口（无需认证）
			users.POST("/register", cfg.Users.Register)
			users.POST("/login", cfg.Users.Login)

			authUsers := users.Group("")
			authUsers.Use(cfg.JWT.AuthMiddleware())
			{
				authUsers.GET("/profile", cfg.Users.GetProfile)
			}
		}

		// 私信路由（需要认证），与 user/message 命名路由保持一致
		messages := v1.Group("/message")
		messages.Use(cfg.JWT.AuthMiddleware())
		{
			messages.POST("/compose", cfg.Messages.Compose)
			messages.GET("/inbox", cfg.Messages.List(repository.FolderInbox))
			messages.GET("/outbox", cfg.Messages.List(repository.FolderOutbox))
			messages.GET("/drafts", cfg.Messages.List(repository.FolderDrafts))
			messages.GET("/list", cfg.Messages.List(repository.FolderAll))
			messages.GET("/view/:id", cfg.Messages.View)
			messages.PUT("/edit/:id", cfg.Messages.Edit)
			messages.POST("/send/:id", cfg.Messages.Send)
			messages.DELETE("/delete/:id", cfg.Messages.Delete)
		}
	}

	if cfg.WebSocket != nil {
		router.GET("/ws", cfg.WebSocket.Serve)
	}

	return router
}

// health 健康检查，任一依赖失败时返回503
func health(checks map[string]HealthCheck, online func() int) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		deps := make(map[string]string, len(checks))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				deps[name] = err.Error()
				status = "degraded"
				continue
			}
			deps[name] = "ok"
		}

		data := gin.H{
			"status":       status,
			"dependencies": deps,
			"time":         time.Now().Format(time.RFC3339),
		}
		if online != nil {
			data["online"] = online()
		}
		if status != "ok" {
			c.JSON(http.StatusServiceUnavailable, response.Response{Code: http.StatusServiceUnavailable, Message: status, Data: data})
			return
		}
		response.Success(c, data)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pm-system/config"
	"pm-system/internal/handler"
	"pm-system/internal/model"
	"pm-system/internal/repository"
	"pm-system/internal/service"
	dbPkg "pm-system/pkg/db"
	"pm-system/pkg/jwt"
	"pm-system/pkg/logger"
	"pm-system/pkg/redis"
	"pm-system/pkg/route"
	"pm-system/pkg/text"
	"pm-system/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== 私信系统启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.Duration("message_cache_ttl", cfg.Cache.MessageTTL),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(&model.User{}, &model.Message{}); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 4. 初始化Redis（消息缓存）
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := redis.InitRedis(ctx, cfg.Redis)
	cancel()
	if err != nil {
		log.Fatal("Redis连接失败", zap.Error(err))
	}
	defer func() {
		if err := redis.Close(); err != nil {
			log.Error("关闭Redis连接失败", zap.Error(err))
		}
	}()
	messageCache := redis.NewNamespace(rdb, redis.MessageNamespace, cfg.Cache.MessageTTL)

	// 5. 命名路由
	routes := route.NewDefaultRegistry(cfg.Route.BasePath)
	messageRoute, err := routes.Get(route.MessageRoute)
	if err != nil {
		log.Fatal("路由未注册", zap.Error(err))
	}

	// 6. 初始化业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	wsManager := websocket.NewManager()
	userRepo := repository.NewUserRepository(db)
	messages := repository.NewMessageFactory(db, text.NewRenderer(), messageRoute, messageCache)
	userSvc := service.NewUserService(userRepo, jwtSvc)
	messageSvc := service.NewMessageService(messages, userRepo, messageCache, wsManager)

	// 7. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterConfig{
		BasePath:  cfg.Route.BasePath,
		JWT:       jwtSvc,
		Users:     handler.NewUserHandler(userSvc),
		Messages:  handler.NewMessageHandler(messageSvc),
		WebSocket: websocket.NewHandler(wsManager, jwtSvc, cfg.WebSocket),
		Checks: map[string]handler.HealthCheck{
			"database": func(context.Context) error { return dbPkg.HealthCheck() },
			"redis":    redis.HealthCheck,
		},
		Online: wsManager.OnlineCount,
	})

	// 8. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

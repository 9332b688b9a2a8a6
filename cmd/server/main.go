package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cockpit_go/internal/config"
	"cockpit_go/internal/handler"
	"cockpit_go/internal/middleware"
	"cockpit_go/internal/repository"
	"cockpit_go/internal/service"
	"cockpit_go/pkg/database"
	"cockpit_go/pkg/log"
	"cockpit_go/pkg/nautobot"
	"cockpit_go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Init("configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	log.Info("Server starting")

	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.RunMigrate(); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 依赖装配：repository -> service -> handler
	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)

	nautobotClient := nautobot.NewClient(
		cfg.Nautobot.URL,
		cfg.Nautobot.Token,
		time.Duration(cfg.Nautobot.TimeoutSeconds)*time.Second,
	)

	userRepo := repository.NewUserRepository(database.DB)
	inventoryRepo := repository.NewInventoryRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB, time.Duration(cfg.Session.TTLSeconds)*time.Second)

	userService := service.NewUserService(userRepo, jwtManager)
	inventoryService := service.NewInventoryService(inventoryRepo)
	filterService := service.NewFilterService(sessionRepo)
	locationService := service.NewLocationService(nautobotClient, database.RDB, time.Duration(cfg.Cache.LocationTTLSeconds)*time.Second)
	previewService := service.NewPreviewService(nautobotClient)

	userHandler := handler.NewUserHandler(userService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, previewService)
	filterHandler := handler.NewFilterHandler(filterService, inventoryService)
	locationHandler := handler.NewLocationHandler(locationService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	// 公开路由：注册、登录
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
	}

	// 受保护路由：需要携带有效 access token
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		api.POST("/auth/logout", userHandler.Logout)
		api.GET("/users/profile", userHandler.GetProfile)

		api.GET("/locations", locationHandler.List)

		inventories := api.Group("/inventories")
		{
			inventories.POST("", inventoryHandler.Create)
			inventories.GET("", inventoryHandler.List)
			inventories.GET("/search", inventoryHandler.Search)
			inventories.GET("/health", inventoryHandler.Health)
			inventories.GET("/field-options", inventoryHandler.FieldOptions)
			inventories.POST("/preview", inventoryHandler.Preview)
			inventories.GET("/:id", inventoryHandler.Get)
			inventories.PUT("/:id", inventoryHandler.Update)
			inventories.DELETE("/:id", inventoryHandler.Delete)
		}

		sessions := api.Group("/filter-sessions")
		{
			sessions.POST("", filterHandler.CreateSession)
			sessions.GET("/:id", filterHandler.GetSession)
			sessions.DELETE("/:id", filterHandler.DeleteSession)
			sessions.POST("/:id/conditions", filterHandler.AddCondition)
			sessions.POST("/:id/groups", filterHandler.AddGroup)
			sessions.POST("/:id/groups/:groupId/toggle-logic", filterHandler.ToggleGroupLogic)
			sessions.DELETE("/:id/items/:itemId", filterHandler.RemoveItem)
			sessions.PUT("/:id/target", filterHandler.SelectTarget)
			sessions.GET("/:id/operations", filterHandler.Flatten)
			sessions.POST("/:id/load-inventory", filterHandler.LoadInventory)
		}
	}

	// 管理员路由：在认证之上再校验 ADMIN 角色
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
	{
		admin.GET("/users", userHandler.ListUsers)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

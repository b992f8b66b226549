package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "marketplace/api/swagger" // swagger docs
	"marketplace/internal/cache"
	"marketplace/internal/database"
	"marketplace/internal/handler"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDatabase()
		if err != nil {
			return err
		}
		if autoMigrate {
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
		}

		redisCache := cache.New(ctx, cfg.Redis, log)
		defer redisCache.Close()

		// Set up WebSocket Hub
		wsHub := websocket.NewHub(log)
		go wsHub.Run(ctx)

		// Set up dependencies (Repository -> Service -> Handler)
		txManager := repository.NewTransactionManager(db)
		userRepo := repository.NewUserRepository(db)
		roleRepo := repository.NewRoleRepository(db)
		registry := repository.NewEntityRegistry(db)

		auditService := service.NewAuditService(repository.NewAuditRepository(db), log)
		roleService := service.NewRoleService(roleRepo, txManager)
		userService := service.NewUserService(userRepo, roleRepo, cfg.JWT)
		notificationService := service.NewNotificationService(
			repository.NewNotificationRepository(db), userRepo, wsHub, cfg.Approval.ReviewPermission, log)
		approvalService := service.NewApprovalService(
			txManager, repository.NewApprovalRepository(db), registry, notificationService,
			auditService, cfg.Approval.BypassPermission, log)
		catalogService := service.NewCatalogService(txManager, registry, approvalService, auditService)
		inventoryService, err := service.NewInventoryService(
			txManager, repository.NewInventoryRepository(db), registry, redisCache, auditService, cfg.Inventory, log)
		if err != nil {
			return err
		}

		auth := middleware.NewAuth(cfg.JWT.Secret, roleService, 5*time.Minute)

		gin.SetMode(cfg.Server.Mode)
		router := gin.New()
		router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log))

		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		router.Use(cors.New(corsConfig))

		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "OK"})
		})
		router.GET("/ws", func(c *gin.Context) {
			websocket.ServeWs(wsHub, auth, c)
		})

		api := router.Group("")
		secureCookie := cfg.Server.Mode == gin.ReleaseMode
		handler.NewUserHandler(userService, auth, cfg.JWT.AccessTTL, secureCookie).RegisterRoutes(api)
		handler.NewRoleHandler(roleService, auth).RegisterRoutes(api)
		handler.NewCatalogHandler(catalogService, auth).RegisterRoutes(api)
		handler.NewApprovalHandler(approvalService, auth).RegisterRoutes(api)
		handler.NewNotificationHandler(notificationService, auth).RegisterRoutes(api)
		handler.NewInventoryHandler(inventoryService, auth).RegisterRoutes(api)
		handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "run schema migration before serving")
}

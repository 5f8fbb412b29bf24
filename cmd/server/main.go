package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/c1767673917/wlxj/internal/backup"
	"github.com/c1767673917/wlxj/internal/config"
	"github.com/c1767673917/wlxj/internal/metrics"
	"github.com/c1767673917/wlxj/internal/middleware"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/handler"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting wlxj service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Supplier{},
		&entity.Order{},
		&entity.OrderSupplier{},
		&entity.Quote{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// redis可选，未配置时访问码查询直查数据库
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, falling back to database lookups", zap.Error(err))
			rdb = nil
		}
	}

	// 组装仓库与服务
	repos := repository.NewRepositories(db, rdb)
	notifier := service.NewNotifier(cfg.Portal.BaseURL, zapLogger)
	authSvc := service.NewAuthService(repos.User, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenExpire, cfg.JWT.PortalTokenExpire)
	orderSvc := service.NewOrderService(db, repos, notifier, zapLogger)
	quoteSvc := service.NewQuoteService(repos.Quote, repos.Order, zapLogger)
	supplierSvc := service.NewSupplierService(repos.Supplier, cfg.Portal.BaseURL)

	// 备份管理器仅sqlite可用
	shutdownCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()

	var backupMgr *backup.Manager
	if cfg.Database.Driver == "sqlite" {
		backupMgr = backup.NewManager(cfg.Database.Path, cfg.Backup.Dir, cfg.Backup.KeepDays, cfg.Backup.Compress, zapLogger)
		if cfg.Backup.Enabled {
			backupMgr.StartScheduler(shutdownCtx, cfg.Backup.Interval)
			zapLogger.Info("Backup scheduler started",
				zap.Duration("interval", cfg.Backup.Interval),
				zap.Int("keep_days", cfg.Backup.KeepDays))
		}
	}

	handlers := handler.NewHandlers(authSvc, orderSvc, quoteSvc, supplierSvc, handler.AdminDeps{
		Repos:  repos,
		Orders: orderSvc,
		Backup: backupMgr,
	})

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(metrics.Middleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// prometheus指标
	r.GET("/metrics", metrics.Handler())

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// 供应商门户入口（凭访问码换门户令牌，无需登录）
		v1.GET("/portal/supplier/:code", h.Portal.Entry)

		// 门户接口（门户令牌）
		portal := v1.Group("/portal")
		portal.Use(middleware.PortalAuth(cfg.JWT.Secret))
		{
			portal.GET("/orders", h.Portal.Orders)
			portal.GET("/orders/:id", h.Portal.OrderDetail)
			portal.POST("/orders/:id/quotes", h.Portal.SubmitQuote)
			portal.GET("/quotes", h.Portal.MyQuotes)
		}

		// 采购方接口（用户令牌）
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authed.GET("/auth/me", h.Auth.Me)

			orders := authed.Group("/orders")
			{
				orders.GET("", h.Order.List)
				orders.POST("", h.Order.Create)
				orders.GET("/:id", h.Order.Get)
				orders.PUT("/:id", h.Order.Update)
				orders.GET("/:id/quotes", h.Order.Quotes)
				orders.GET("/:id/quotes/export", h.Order.ExportQuotes)
				orders.POST("/:id/select", h.Order.SelectSupplier)
				orders.POST("/:id/cancel", h.Order.Cancel)
				orders.POST("/:id/suppliers", h.Order.AddSuppliers)
			}

			suppliers := authed.Group("/suppliers")
			{
				suppliers.GET("", h.Supplier.List)
				suppliers.POST("", h.Supplier.Create)
				suppliers.GET("/:id", h.Supplier.Get)
				suppliers.PUT("/:id", h.Supplier.Update)
				suppliers.DELETE("/:id", h.Supplier.Delete)
				suppliers.POST("/:id/regenerate-code", h.Supplier.RegenerateCode)
				suppliers.GET("/:id/quotes", h.Supplier.QuoteHistory)
			}

			// 管理员接口
			admin := authed.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/stats", h.Admin.Stats)
				admin.GET("/users", h.Admin.Users)
				admin.DELETE("/users/:id", h.Admin.DeleteUser)
				admin.POST("/orders/:id/reset", h.Admin.ResetOrder)
				admin.GET("/cache/stats", h.Admin.SchemaCacheStats)
				admin.POST("/cache/reset", h.Admin.ResetSchemaCache)

				admin.POST("/backups", h.Admin.CreateBackup)
				admin.GET("/backups", h.Admin.ListBackups)
				admin.GET("/backups/stats", h.Admin.BackupStats)
				admin.GET("/backups/:name/verify", h.Admin.VerifyBackup)
				admin.GET("/backups/:name/download", h.Admin.DownloadBackup)
				admin.POST("/backups/:name/restore", h.Admin.RestoreBackup)
				admin.POST("/backups/cleanup", h.Admin.CleanupBackups)
			}
		}
	}
}

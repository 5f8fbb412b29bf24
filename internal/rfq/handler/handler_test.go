package handler

import (
	"testing"
	"time"

	"github.com/c1767673917/wlxj/internal/middleware"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/c1767673917/wlxj/internal/rfq/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testEnv 组装一套完整的测试栈：内存库+服务+路由
type testEnv struct {
	DB       *gorm.DB
	Repos    *repository.Repositories
	Notifier *service.Notifier
	Router   *gin.Engine
}

func setupEnv(t *testing.T, portalBaseURL string) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db, nil)
	logger := zap.NewNop()

	notifier := service.NewNotifier(portalBaseURL, logger)
	authSvc := service.NewAuthService(repos.User, testutil.JWTSecret, "wlxj-test", 24*time.Hour, 24*time.Hour)
	orderSvc := service.NewOrderService(db, repos, notifier, logger)
	quoteSvc := service.NewQuoteService(repos.Quote, repos.Order, logger)
	supplierSvc := service.NewSupplierService(repos.Supplier, portalBaseURL)

	handlers := NewHandlers(authSvc, orderSvc, quoteSvc, supplierSvc, AdminDeps{
		Repos:  repos,
		Orders: orderSvc,
	})

	r := testutil.SetupRouter()
	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", handlers.Auth.Register)
	v1.POST("/auth/login", handlers.Auth.Login)
	v1.GET("/portal/supplier/:code", handlers.Portal.Entry)

	portal := v1.Group("/portal", middleware.PortalAuth(testutil.JWTSecret))
	portal.GET("/orders", handlers.Portal.Orders)
	portal.GET("/orders/:id", handlers.Portal.OrderDetail)
	portal.POST("/orders/:id/quotes", handlers.Portal.SubmitQuote)
	portal.GET("/quotes", handlers.Portal.MyQuotes)

	authed := v1.Group("", middleware.JWTAuth(testutil.JWTSecret))
	authed.GET("/auth/me", handlers.Auth.Me)

	authed.GET("/orders", handlers.Order.List)
	authed.POST("/orders", handlers.Order.Create)
	authed.GET("/orders/:id", handlers.Order.Get)
	authed.PUT("/orders/:id", handlers.Order.Update)
	authed.GET("/orders/:id/quotes", handlers.Order.Quotes)
	authed.GET("/orders/:id/quotes/export", handlers.Order.ExportQuotes)
	authed.POST("/orders/:id/select", handlers.Order.SelectSupplier)
	authed.POST("/orders/:id/cancel", handlers.Order.Cancel)
	authed.POST("/orders/:id/suppliers", handlers.Order.AddSuppliers)

	authed.GET("/suppliers", handlers.Supplier.List)
	authed.POST("/suppliers", handlers.Supplier.Create)
	authed.GET("/suppliers/:id", handlers.Supplier.Get)
	authed.PUT("/suppliers/:id", handlers.Supplier.Update)
	authed.DELETE("/suppliers/:id", handlers.Supplier.Delete)
	authed.POST("/suppliers/:id/regenerate-code", handlers.Supplier.RegenerateCode)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/stats", handlers.Admin.Stats)
	admin.GET("/users", handlers.Admin.Users)
	admin.DELETE("/users/:id", handlers.Admin.DeleteUser)
	admin.POST("/orders/:id/reset", handlers.Admin.ResetOrder)
	admin.GET("/cache/stats", handlers.Admin.SchemaCacheStats)
	admin.POST("/cache/reset", handlers.Admin.ResetSchemaCache)

	return &testEnv{
		DB:       db,
		Repos:    repos,
		Notifier: notifier,
		Router:   r,
	}
}

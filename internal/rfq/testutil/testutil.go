package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c1767673917/wlxj/internal/middleware"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "wlxj-test-secret-key"

var dbSeq atomic.Int64

// SetupTestDB 创建内存sqlite测试库并迁移全部表
// 每个测试独享一个命名共享缓存库，支持多连接并发写入
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%d?mode=memory&cache=shared&_busy_timeout=5000", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// sqlite写并发由单连接串行化，避免并发事务互相拿不到表锁
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Supplier{},
		&entity.Order{},
		&entity.OrderSupplier{},
		&entity.Quote{},
	); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupRouter 创建测试用gin路由
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup 创建带用户JWT认证的路由组
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// PortalGroup 创建带门户JWT认证的路由组
func PortalGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.PortalAuth(JWTSecret))
}

// GenerateTestToken 为测试用户签发JWT
func GenerateTestToken(userID uint, username, role, businessType string) string {
	now := time.Now()
	claims := middleware.UserClaims{
		UserID:       userID,
		Username:     username,
		Role:         role,
		BusinessType: businessType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wlxj-test",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// GeneratePortalToken 为供应商门户签发JWT
func GeneratePortalToken(supplierID uint, accessCode string) string {
	now := time.Now()
	claims := middleware.PortalClaims{
		SupplierID: supplierID,
		AccessCode: accessCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wlxj-test",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DoRequest 对测试路由发起HTTP请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析JSON响应体
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser 创建测试用户
func SeedTestUser(t *testing.T, db *gorm.DB, username, role, businessType string) *entity.User {
	t.Helper()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("test123456"), bcrypt.MinCost)
	user := &entity.User{
		Username:     username,
		Password:     string(hashed),
		Role:         role,
		BusinessType: businessType,
		CreatedAt:    time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedTestSupplier 创建测试供应商
func SeedTestSupplier(t *testing.T, db *gorm.DB, userID uint, name, businessType, webhookURL string) *entity.Supplier {
	t.Helper()
	supplier := &entity.Supplier{
		Name:         name,
		AccessCode:   fmt.Sprintf("code-%s-%d", name, time.Now().UnixNano()),
		WebhookURL:   webhookURL,
		UserID:       userID,
		BusinessType: businessType,
		CreatedAt:    time.Now(),
	}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatalf("Failed to seed test supplier: %v", err)
	}
	return supplier
}

// SeedTestOrder 创建测试订单
func SeedTestOrder(t *testing.T, db *gorm.DB, userID uint, orderNo, businessType, status string) *entity.Order {
	t.Helper()
	order := &entity.Order{
		OrderNo:         orderNo,
		Warehouse:       "测试仓库",
		Goods:           "测试货品",
		DeliveryAddress: "测试收货地址",
		Status:          status,
		UserID:          userID,
		BusinessType:    businessType,
		CreatedAt:       time.Now(),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("Failed to seed test order: %v", err)
	}
	return order
}

// InviteSupplier 为测试订单关联受邀供应商
func InviteSupplier(t *testing.T, db *gorm.DB, orderID, supplierID uint) {
	t.Helper()
	link := &entity.OrderSupplier{OrderID: orderID, SupplierID: supplierID}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("Failed to invite test supplier: %v", err)
	}
}

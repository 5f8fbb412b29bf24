package handler

import (
	"strconv"

	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
)

// Handlers 询价系统处理器集合
type Handlers struct {
	Auth     *AuthHandler
	Order    *OrderHandler
	Supplier *SupplierHandler
	Portal   *PortalHandler
	Admin    *AdminHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(
	authSvc *service.AuthService,
	orderSvc *service.OrderService,
	quoteSvc *service.QuoteService,
	supplierSvc *service.SupplierService,
	adminDeps AdminDeps,
) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(authSvc),
		Order:    NewOrderHandler(orderSvc, quoteSvc),
		Supplier: NewSupplierHandler(supplierSvc, quoteSvc),
		Portal:   NewPortalHandler(authSvc, orderSvc, quoteSvc, supplierSvc),
		Admin:    NewAdminHandler(adminDeps),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

func GetUserID(c *gin.Context) uint {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(uint); ok {
		return id
	}
	return 0
}

// GetScope 组装当前登录用户的数据可见范围
func GetScope(c *gin.Context) repository.Scope {
	role, _ := c.Get("role")
	businessType, _ := c.Get("business_type")

	scope := repository.Scope{UserID: GetUserID(c)}
	if r, ok := role.(string); ok && r == "admin" {
		scope.Admin = true
	}
	if bt, ok := businessType.(string); ok {
		scope.BusinessType = bt
	}
	return scope
}

// GetSupplierID 门户上下文中的供应商ID
func GetSupplierID(c *gin.Context) uint {
	supplierID, _ := c.Get("supplier_id")
	if id, ok := supplierID.(uint); ok {
		return id
	}
	return 0
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// ParseID 解析路径中的数字ID
func ParseID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(v), true
}

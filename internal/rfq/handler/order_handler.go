package handler

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderHandler 询价订单接口
type OrderHandler struct {
	svc    *service.OrderService
	quotes *service.QuoteService
}

func NewOrderHandler(svc *service.OrderService, quotes *service.QuoteService) *OrderHandler {
	return &OrderHandler{svc: svc, quotes: quotes}
}

type createOrderRequest struct {
	Warehouse       string `json:"warehouse" binding:"required,max=200"`
	Goods           string `json:"goods" binding:"required"`
	DeliveryAddress string `json:"delivery_address" binding:"required,max=300"`
	SupplierIDs     []uint `json:"supplier_ids" binding:"required,min=1"`
}

// Create 创建询价订单并通知受邀供应商
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, notify, err := h.svc.Create(c.Request.Context(), GetScope(c), service.CreateOrderInput{
		Warehouse:       req.Warehouse,
		Goods:           req.Goods,
		DeliveryAddress: req.DeliveryAddress,
		SupplierIDs:     req.SupplierIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoValidSuppliers):
			BadRequest(c, err.Error())
		case errors.Is(err, repository.ErrDailyOrderLimit):
			Conflict(c, err.Error())
		case errors.Is(err, repository.ErrOrderNoConflict):
			InternalError(c, err.Error())
		default:
			InternalError(c, "创建订单失败")
		}
		return
	}

	Created(c, gin.H{
		"order":  order,
		"notify": notify,
	})
}

// List 订单列表
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status": c.Query("status"),
		"search": c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), GetScope(c), page, pageSize, filters)
	if err != nil {
		InternalError(c, "查询订单失败")
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// Get 订单详情（含报价摘要）
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Get(c.Request.Context(), GetScope(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "订单不存在")
			return
		}
		InternalError(c, "查询订单失败")
		return
	}

	summary, err := h.quotes.Summary(c.Request.Context(), order.ID)
	if err != nil {
		InternalError(c, "查询报价摘要失败")
		return
	}

	Success(c, gin.H{
		"order":         order,
		"quote_summary": summary,
	})
}

type updateOrderRequest struct {
	Warehouse       string `json:"warehouse" binding:"required,max=200"`
	Goods           string `json:"goods" binding:"required"`
	DeliveryAddress string `json:"delivery_address" binding:"required,max=300"`
}

// Update 编辑进行中的订单
func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.Update(c.Request.Context(), GetScope(c), id, service.UpdateOrderInput{
		Warehouse:       req.Warehouse,
		Goods:           req.Goods,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "订单不存在")
		case errors.Is(err, service.ErrOrderNotActive):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "更新订单失败")
		}
		return
	}

	Success(c, order)
}

type selectSupplierRequest struct {
	SupplierID uint            `json:"supplier_id" binding:"required"`
	Price      decimal.Decimal `json:"price" binding:"required"`
}

// SelectSupplier 选定中标供应商
func (h *OrderHandler) SelectSupplier(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req selectSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.SelectSupplier(c.Request.Context(), GetScope(c), id, req.SupplierID, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "订单不存在")
		case errors.Is(err, service.ErrOrderNotActive),
			errors.Is(err, service.ErrSupplierNotQuoted),
			errors.Is(err, service.ErrQuoteMismatch):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "选标失败")
		}
		return
	}

	Success(c, order)
}

// Cancel 取消订单
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Cancel(c.Request.Context(), GetScope(c), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "订单不存在")
		case errors.Is(err, service.ErrOrderNotActive):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "取消订单失败")
		}
		return
	}

	Success(c, order)
}

type addSuppliersRequest struct {
	SupplierIDs []uint `json:"supplier_ids" binding:"required,min=1"`
}

// AddSuppliers 追加受邀供应商
func (h *OrderHandler) AddSuppliers(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req addSuppliersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	notify, err := h.svc.AddSuppliers(c.Request.Context(), GetScope(c), id, req.SupplierIDs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "订单不存在")
		case errors.Is(err, service.ErrOrderNotActive),
			errors.Is(err, service.ErrNoValidSuppliers):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "追加供应商失败")
		}
		return
	}

	Success(c, notify)
}

// Quotes 订单报价列表与比较统计
func (h *OrderHandler) Quotes(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Get(c.Request.Context(), GetScope(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "订单不存在")
			return
		}
		InternalError(c, "查询订单失败")
		return
	}

	quotes, stats, err := h.quotes.Compare(c.Request.Context(), order.ID)
	if err != nil {
		InternalError(c, "查询报价失败")
		return
	}

	Success(c, gin.H{
		"quotes": quotes,
		"stats":  stats,
	})
}

// ExportQuotes 导出订单报价为xlsx
func (h *OrderHandler) ExportQuotes(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.svc.Get(c.Request.Context(), GetScope(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "订单不存在")
			return
		}
		InternalError(c, "查询订单失败")
		return
	}

	f, filename, err := h.quotes.ExportOrderQuotes(c.Request.Context(), order)
	if err != nil {
		InternalError(c, "导出失败")
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出文件失败")
	}
}

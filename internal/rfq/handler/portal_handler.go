package handler

import (
	"errors"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PortalHandler 供应商门户接口
// 供应商无账号，凭专属访问码进入门户并换取受限令牌
type PortalHandler struct {
	auth      *service.AuthService
	orders    *service.OrderService
	quotes    *service.QuoteService
	suppliers *service.SupplierService
}

func NewPortalHandler(auth *service.AuthService, orders *service.OrderService, quotes *service.QuoteService, suppliers *service.SupplierService) *PortalHandler {
	return &PortalHandler{auth: auth, orders: orders, quotes: quotes, suppliers: suppliers}
}

// currentSupplier 校验门户令牌绑定的访问码是否仍然有效
// 访问码重置后旧令牌虽未过期也会在此被拒绝
func (h *PortalHandler) currentSupplier(c *gin.Context) (uint, bool) {
	supplierID := GetSupplierID(c)
	accessCode, _ := c.Get("access_code")
	code, _ := accessCode.(string)

	supplier, err := h.suppliers.GetByAccessCode(c.Request.Context(), code)
	if err != nil || supplier.ID != supplierID {
		Error(c, 40110, "门户访问凭证已失效")
		return 0, false
	}
	return supplierID, true
}

// Entry 门户入口：访问码换取门户令牌
func (h *PortalHandler) Entry(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		BadRequest(c, "缺少访问码")
		return
	}

	supplier, err := h.suppliers.GetByAccessCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "无效的访问码")
			return
		}
		InternalError(c, "门户入口异常")
		return
	}

	token, err := h.auth.GeneratePortalToken(supplier)
	if err != nil {
		InternalError(c, "签发门户令牌失败")
		return
	}

	Success(c, gin.H{
		"token": token,
		"supplier": gin.H{
			"id":   supplier.ID,
			"name": supplier.Name,
		},
	})
}

// Orders 受邀且进行中的订单列表
func (h *PortalHandler) Orders(c *gin.Context) {
	supplierID, ok := h.currentSupplier(c)
	if !ok {
		return
	}

	orders, err := h.orders.InvitedActive(c.Request.Context(), supplierID)
	if err != nil {
		InternalError(c, "查询订单失败")
		return
	}
	Success(c, orders)
}

// OrderDetail 受邀订单详情（含本供应商已有报价）
func (h *PortalHandler) OrderDetail(c *gin.Context) {
	supplierID, ok := h.currentSupplier(c)
	if !ok {
		return
	}
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetInvited(c.Request.Context(), id, supplierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "订单不存在或未受邀")
			return
		}
		InternalError(c, "查询订单失败")
		return
	}

	quotes, err := h.quotes.HistoryBySupplier(c.Request.Context(), supplierID)
	if err != nil {
		InternalError(c, "查询报价失败")
		return
	}
	var myQuote interface{}
	for i := range quotes {
		if quotes[i].OrderID == order.ID {
			myQuote = quotes[i]
			break
		}
	}

	// 只透出报价总数，竞争对手的价格不外泄
	total, err := h.quotes.CountByOrder(c.Request.Context(), order.ID)
	if err != nil {
		InternalError(c, "查询报价失败")
		return
	}

	Success(c, gin.H{
		"order":        order,
		"my_quote":     myQuote,
		"total_quotes": total,
	})
}

type submitQuoteRequest struct {
	Price        decimal.Decimal `json:"price" binding:"required"`
	DeliveryTime string          `json:"delivery_time" binding:"omitempty,max=50"`
	Remarks      string          `json:"remarks"`
}

// SubmitQuote 提交或更新报价
func (h *PortalHandler) SubmitQuote(c *gin.Context) {
	supplierID, ok := h.currentSupplier(c)
	if !ok {
		return
	}
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req submitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	quote, err := h.quotes.Submit(c.Request.Context(), service.SubmitInput{
		OrderID:      id,
		SupplierID:   supplierID,
		Price:        req.Price,
		DeliveryTime: req.DeliveryTime,
		Remarks:      req.Remarks,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotInvited):
			Forbidden(c, err.Error())
		case errors.Is(err, service.ErrOrderClosed),
			errors.Is(err, entity.ErrInvalidQuotePrice),
			errors.Is(err, entity.ErrQuotePriceTooLarge):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "提交报价失败")
		}
		return
	}

	Success(c, quote)
}

// MyQuotes 本供应商的历史报价
func (h *PortalHandler) MyQuotes(c *gin.Context) {
	supplierID, ok := h.currentSupplier(c)
	if !ok {
		return
	}

	quotes, err := h.quotes.HistoryBySupplier(c.Request.Context(), supplierID)
	if err != nil {
		InternalError(c, "查询报价失败")
		return
	}
	Success(c, quotes)
}

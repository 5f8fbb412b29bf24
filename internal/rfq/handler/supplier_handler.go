package handler

import (
	"errors"

	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
)

// SupplierHandler 供应商管理接口
type SupplierHandler struct {
	svc    *service.SupplierService
	quotes *service.QuoteService
}

func NewSupplierHandler(svc *service.SupplierService, quotes *service.QuoteService) *SupplierHandler {
	return &SupplierHandler{svc: svc, quotes: quotes}
}

// List 供应商列表
func (h *SupplierHandler) List(c *gin.Context) {
	filters := map[string]string{
		"search": c.Query("search"),
	}

	items, err := h.svc.List(c.Request.Context(), GetScope(c), filters)
	if err != nil {
		InternalError(c, "查询供应商失败")
		return
	}
	Success(c, items)
}

// Get 供应商详情（含门户链接）
func (h *SupplierHandler) Get(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	supplier, err := h.svc.Get(c.Request.Context(), GetScope(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "供应商不存在")
			return
		}
		InternalError(c, "查询供应商失败")
		return
	}

	Success(c, gin.H{
		"supplier":    supplier,
		"portal_link": h.svc.PortalLink(supplier),
	})
}

type createSupplierRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	WebhookURL   string `json:"webhook_url" binding:"omitempty,url"`
	BusinessType string `json:"business_type"`
}

// Create 创建供应商
func (h *SupplierHandler) Create(c *gin.Context) {
	var req createSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.Create(c.Request.Context(), GetScope(c), req.Name, req.WebhookURL, req.BusinessType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSupplierNameTaken):
			Conflict(c, err.Error())
		case errors.Is(err, service.ErrInvalidBusiness):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "创建供应商失败")
		}
		return
	}

	Created(c, gin.H{
		"supplier":    supplier,
		"portal_link": h.svc.PortalLink(supplier),
	})
}

type updateSupplierRequest struct {
	Name       string `json:"name" binding:"omitempty,max=100"`
	WebhookURL string `json:"webhook_url" binding:"omitempty,url"`
}

// Update 更新供应商
func (h *SupplierHandler) Update(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	var req updateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	supplier, err := h.svc.Update(c.Request.Context(), GetScope(c), id, req.Name, req.WebhookURL)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "供应商不存在")
		case errors.Is(err, service.ErrSupplierNameTaken):
			Conflict(c, err.Error())
		default:
			InternalError(c, "更新供应商失败")
		}
		return
	}

	Success(c, supplier)
}

// RegenerateCode 重置门户访问码
func (h *SupplierHandler) RegenerateCode(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	supplier, err := h.svc.RegenerateAccessCode(c.Request.Context(), GetScope(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "供应商不存在")
			return
		}
		InternalError(c, "重置访问码失败")
		return
	}

	Success(c, gin.H{
		"supplier":    supplier,
		"portal_link": h.svc.PortalLink(supplier),
	})
}

// Delete 删除供应商
func (h *SupplierHandler) Delete(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), GetScope(c), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "供应商不存在")
		case errors.Is(err, repository.ErrSupplierHasQuotes):
			Conflict(c, err.Error())
		default:
			InternalError(c, "删除供应商失败")
		}
		return
	}

	Success(c, gin.H{"deleted": id})
}

// QuoteHistory 供应商历史报价
func (h *SupplierHandler) QuoteHistory(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	if _, err := h.svc.Get(c.Request.Context(), GetScope(c), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "供应商不存在")
			return
		}
		InternalError(c, "查询供应商失败")
		return
	}

	quotes, err := h.quotes.HistoryBySupplier(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "查询报价历史失败")
		return
	}
	Success(c, quotes)
}

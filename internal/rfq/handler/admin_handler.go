package handler

import (
	"errors"

	"github.com/c1767673917/wlxj/internal/backup"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/c1767673917/wlxj/internal/rfq/service"
	"github.com/gin-gonic/gin"
)

// AdminDeps 管理接口依赖
// Backup 在非sqlite数据库下为nil，对应接口返回错误
type AdminDeps struct {
	Repos  *repository.Repositories
	Orders *service.OrderService
	Backup *backup.Manager
}

// AdminHandler 管理员接口
type AdminHandler struct {
	deps AdminDeps
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// Stats 系统概览统计
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.deps.Repos.User.Count(ctx)
	if err != nil {
		InternalError(c, "统计失败")
		return
	}
	suppliers, err := h.deps.Repos.Supplier.Count(ctx)
	if err != nil {
		InternalError(c, "统计失败")
		return
	}
	quotes, err := h.deps.Repos.Quote.Count(ctx)
	if err != nil {
		InternalError(c, "统计失败")
		return
	}

	orderStats := gin.H{}
	total := int64(0)
	for _, status := range []string{entity.OrderStatusActive, entity.OrderStatusCompleted, entity.OrderStatusCancelled} {
		count, err := h.deps.Repos.Order.CountByStatus(ctx, status)
		if err != nil {
			InternalError(c, "统计失败")
			return
		}
		orderStats[status] = count
		total += count
	}
	orderStats["total"] = total

	Success(c, gin.H{
		"users":     users,
		"suppliers": suppliers,
		"quotes":    quotes,
		"orders":    orderStats,
	})
}

// Users 用户列表
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.deps.Repos.User.List(c.Request.Context())
	if err != nil {
		InternalError(c, "查询用户失败")
		return
	}
	Success(c, users)
}

// DeleteUser 删除用户及其全部关联数据
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}
	if id == GetUserID(c) {
		BadRequest(c, "不能删除当前登录的管理员账号")
		return
	}

	stats, err := h.deps.Repos.User.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		InternalError(c, "删除用户失败")
		return
	}
	Success(c, stats)
}

// ResetOrder 将已完成订单重置为进行中
func (h *AdminHandler) ResetOrder(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.deps.Orders.Reactivate(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "订单不存在")
		case errors.Is(err, service.ErrOrderNotCompleted):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "重置订单失败")
		}
		return
	}
	Success(c, order)
}

// SchemaCacheStats 报价模型schema缓存诊断信息
func (h *AdminHandler) SchemaCacheStats(c *gin.Context) {
	Success(c, entity.GetQuoteSchemaStats())
}

// ResetSchemaCache 清空报价模型schema缓存与计数器
func (h *AdminHandler) ResetSchemaCache(c *gin.Context) {
	entity.ResetQuoteSchemaCache()
	Success(c, entity.GetQuoteSchemaStats())
}

func (h *AdminHandler) requireBackup(c *gin.Context) bool {
	if h.deps.Backup == nil {
		BadRequest(c, backup.ErrSQLiteOnly.Error())
		return false
	}
	return true
}

// CreateBackup 立即创建数据库备份
func (h *AdminHandler) CreateBackup(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	info, err := h.deps.Backup.Create()
	if err != nil {
		InternalError(c, "创建备份失败: "+err.Error())
		return
	}
	Created(c, info)
}

// ListBackups 备份文件列表
func (h *AdminHandler) ListBackups(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	backups, err := h.deps.Backup.List()
	if err != nil {
		InternalError(c, "查询备份失败")
		return
	}
	Success(c, backups)
}

// VerifyBackup 校验备份文件完整性
func (h *AdminHandler) VerifyBackup(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	name := c.Param("name")
	if err := h.deps.Backup.Verify(name); err != nil {
		switch {
		case errors.Is(err, backup.ErrBackupNotFound):
			NotFound(c, err.Error())
		case errors.Is(err, backup.ErrBackupName), errors.Is(err, backup.ErrInvalidBackup):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "校验备份失败")
		}
		return
	}
	Success(c, gin.H{"name": name, "valid": true})
}

// DownloadBackup 下载备份文件
func (h *AdminHandler) DownloadBackup(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	name := c.Param("name")
	path, err := h.deps.Backup.Path(name)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrBackupNotFound):
			NotFound(c, err.Error())
		case errors.Is(err, backup.ErrBackupName):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "下载备份失败")
		}
		return
	}
	c.FileAttachment(path, name)
}

// RestoreBackup 从备份恢复数据库
func (h *AdminHandler) RestoreBackup(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	name := c.Param("name")
	if err := h.deps.Backup.Restore(name); err != nil {
		switch {
		case errors.Is(err, backup.ErrBackupNotFound):
			NotFound(c, err.Error())
		case errors.Is(err, backup.ErrBackupName), errors.Is(err, backup.ErrInvalidBackup):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "恢复备份失败: "+err.Error())
		}
		return
	}
	Success(c, gin.H{"restored": name})
}

// CleanupBackups 清理过期备份
func (h *AdminHandler) CleanupBackups(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	removed, err := h.deps.Backup.Cleanup()
	if err != nil {
		InternalError(c, "清理备份失败")
		return
	}
	Success(c, gin.H{"removed": removed})
}

// BackupStats 备份目录汇总
func (h *AdminHandler) BackupStats(c *gin.Context) {
	if !h.requireBackup(c) {
		return
	}
	stats, err := h.deps.Backup.Stats()
	if err != nil {
		InternalError(c, "查询备份统计失败")
		return
	}
	Success(c, stats)
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
)

var ErrSupplierNameTaken = errors.New("同业务类型下供应商名称已存在")

// SupplierService 供应商管理服务
type SupplierService struct {
	suppliers *repository.SupplierRepository
	baseURL   string
}

func NewSupplierService(suppliers *repository.SupplierRepository, baseURL string) *SupplierService {
	return &SupplierService{suppliers: suppliers, baseURL: baseURL}
}

// generateAccessCode 生成门户访问码：32字节随机数的URL安全base64编码
func generateAccessCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成访问码失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// PortalLink 供应商专属门户链接
func (s *SupplierService) PortalLink(supplier *entity.Supplier) string {
	return fmt.Sprintf("%s/portal/supplier/%s", s.baseURL, supplier.AccessCode)
}

// GetByAccessCode 根据门户访问码查找供应商（门户入口使用）
func (s *SupplierService) GetByAccessCode(ctx context.Context, code string) (*entity.Supplier, error) {
	return s.suppliers.FindByAccessCode(ctx, code)
}

// List 查询供应商列表
func (s *SupplierService) List(ctx context.Context, scope repository.Scope, filters map[string]string) ([]entity.Supplier, error) {
	return s.suppliers.FindAll(ctx, scope, filters)
}

// Get 查询单个供应商
func (s *SupplierService) Get(ctx context.Context, scope repository.Scope, id uint) (*entity.Supplier, error) {
	return s.suppliers.FindByID(ctx, scope, id)
}

// Create 创建供应商并分配访问码
// 业务类型取自创建者；管理员创建时可显式指定
func (s *SupplierService) Create(ctx context.Context, scope repository.Scope, name, webhookURL, businessType string) (*entity.Supplier, error) {
	bt := scope.BusinessType
	if scope.Admin && businessType != "" {
		bt = businessType
	}
	if !entity.ValidBusinessType(bt) {
		return nil, ErrInvalidBusiness
	}

	taken, err := s.suppliers.ExistsByName(ctx, name, bt, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSupplierNameTaken
	}

	code, err := generateAccessCode()
	if err != nil {
		return nil, err
	}

	supplier := &entity.Supplier{
		Name:         name,
		AccessCode:   code,
		WebhookURL:   webhookURL,
		UserID:       scope.UserID,
		BusinessType: bt,
	}
	if err := s.suppliers.Create(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// Update 更新供应商名称与webhook地址
func (s *SupplierService) Update(ctx context.Context, scope repository.Scope, id uint, name, webhookURL string) (*entity.Supplier, error) {
	supplier, err := s.suppliers.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if name != "" && name != supplier.Name {
		taken, err := s.suppliers.ExistsByName(ctx, name, supplier.BusinessType, supplier.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSupplierNameTaken
		}
		supplier.Name = name
	}
	supplier.WebhookURL = webhookURL

	if err := s.suppliers.Update(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

// RegenerateAccessCode 重置访问码，旧门户链接与旧门户令牌随即失效
func (s *SupplierService) RegenerateAccessCode(ctx context.Context, scope repository.Scope, id uint) (*entity.Supplier, error) {
	supplier, err := s.suppliers.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	code, err := generateAccessCode()
	if err != nil {
		return nil, err
	}
	if err := s.suppliers.UpdateAccessCode(ctx, supplier, code); err != nil {
		return nil, err
	}
	return supplier, nil
}

// Delete 删除供应商；存在关联报价时拒绝
func (s *SupplierService) Delete(ctx context.Context, scope repository.Scope, id uint) error {
	supplier, err := s.suppliers.FindByID(ctx, scope, id)
	if err != nil {
		return err
	}
	return s.suppliers.Delete(ctx, supplier)
}

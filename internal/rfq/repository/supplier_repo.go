package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 访问码缓存：门户链接由外部访问，供应商查询是热路径
const (
	accessCodeCachePrefix = "wlxj:supplier_code:"
	accessCodeCacheTTL    = 5 * time.Minute
)

// SupplierRepository 供应商仓库
type SupplierRepository struct {
	db  *gorm.DB
	rdb *redis.Client // 可为nil，nil时直查数据库
}

func NewSupplierRepository(db *gorm.DB, rdb *redis.Client) *SupplierRepository {
	return &SupplierRepository{db: db, rdb: rdb}
}

// FindAll 查询供应商列表（业务类型分区过滤）
func (r *SupplierRepository) FindAll(ctx context.Context, scope Scope, filters map[string]string) ([]entity.Supplier, error) {
	var items []entity.Supplier
	query := scope.Apply(r.db.WithContext(ctx).Model(&entity.Supplier{}))

	if search := filters["search"]; search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

// FindByID 根据ID查找供应商（业务类型分区过滤）
func (r *SupplierRepository) FindByID(ctx context.Context, scope Scope, id uint) (*entity.Supplier, error) {
	var supplier entity.Supplier
	err := scope.Apply(r.db.WithContext(ctx).Where("id = ?", id)).First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

// FindByIDs 查找当前用户拥有的一批供应商
func (r *SupplierRepository) FindByIDs(ctx context.Context, userID uint, ids []uint) ([]entity.Supplier, error) {
	var suppliers []entity.Supplier
	err := r.db.WithContext(ctx).
		Where("id IN ? AND user_id = ?", ids, userID).
		Find(&suppliers).Error
	return suppliers, err
}

// FindByAccessCode 根据门户访问码查找供应商
// 配置了redis时先查缓存拿供应商ID，减少外部门户请求对主库的压力
func (r *SupplierRepository) FindByAccessCode(ctx context.Context, code string) (*entity.Supplier, error) {
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, accessCodeCachePrefix+code).Result(); err == nil {
			if id, err := strconv.ParseUint(cached, 10, 64); err == nil {
				var supplier entity.Supplier
				// 缓存的ID仍需和当前访问码比对，访问码重置后缓存立即失效
				if err := r.db.WithContext(ctx).
					Where("id = ? AND access_code = ?", uint(id), code).
					First(&supplier).Error; err == nil {
					return &supplier, nil
				}
				r.rdb.Del(ctx, accessCodeCachePrefix+code)
			}
		}
	}

	var supplier entity.Supplier
	err := r.db.WithContext(ctx).Where("access_code = ?", code).First(&supplier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.rdb != nil {
		r.rdb.Set(ctx, accessCodeCachePrefix+code, strconv.FormatUint(uint64(supplier.ID), 10), accessCodeCacheTTL)
	}
	return &supplier, nil
}

// ExistsByName 检查名称在指定业务类型中是否已存在
func (r *SupplierRepository) ExistsByName(ctx context.Context, name, businessType string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Supplier{}).
		Where("name = ? AND business_type = ?", name, businessType)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// Create 创建供应商
func (r *SupplierRepository) Create(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// Update 更新供应商
func (r *SupplierRepository) Update(ctx context.Context, supplier *entity.Supplier) error {
	return r.db.WithContext(ctx).Save(supplier).Error
}

// UpdateAccessCode 重置访问码并清除旧码缓存
func (r *SupplierRepository) UpdateAccessCode(ctx context.Context, supplier *entity.Supplier, newCode string) error {
	oldCode := supplier.AccessCode
	supplier.AccessCode = newCode
	if err := r.db.WithContext(ctx).Save(supplier).Error; err != nil {
		return err
	}
	if r.rdb != nil {
		r.rdb.Del(ctx, accessCodeCachePrefix+oldCode)
	}
	return nil
}

// Delete 删除供应商；存在关联报价时拒绝删除
func (r *SupplierRepository) Delete(ctx context.Context, supplier *entity.Supplier) error {
	var quoteCount int64
	if err := r.db.WithContext(ctx).Model(&entity.Quote{}).
		Where("supplier_id = ?", supplier.ID).
		Count(&quoteCount).Error; err != nil {
		return err
	}
	if quoteCount > 0 {
		return ErrSupplierHasQuotes
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("supplier_id = ?", supplier.ID).Delete(&entity.OrderSupplier{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(supplier).Error; err != nil {
			return err
		}
		if r.rdb != nil {
			r.rdb.Del(ctx, accessCodeCachePrefix+supplier.AccessCode)
		}
		return nil
	})
}

// Count 供应商总数
func (r *SupplierRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Supplier{}).Count(&count).Error
	return count, err
}

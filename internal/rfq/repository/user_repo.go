package repository

import (
	"context"
	"errors"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"gorm.io/gorm"
)

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername 根据用户名查找用户
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// List 用户列表，按创建时间倒序
func (r *UserRepository) List(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

// DeletionStats 用户删除的关联数据统计
type DeletionStats struct {
	Username      string `json:"username"`
	SupplierCount int64  `json:"supplier_count"`
	OrderCount    int64  `json:"order_count"`
	QuoteCount    int64  `json:"quote_count"`
}

// Delete 删除用户及其全部关联数据
// 单事务内按 报价→订单关联→订单→供应商→用户 顺序删除，任一步失败整体回滚
func (r *UserRepository) Delete(ctx context.Context, id uint) (*DeletionStats, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &DeletionStats{Username: user.Username}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orderIDs []uint
		if err := tx.Model(&entity.Order{}).
			Where("user_id = ?", id).
			Pluck("id", &orderIDs).Error; err != nil {
			return err
		}
		stats.OrderCount = int64(len(orderIDs))

		var supplierIDs []uint
		if err := tx.Model(&entity.Supplier{}).
			Where("user_id = ?", id).
			Pluck("id", &supplierIDs).Error; err != nil {
			return err
		}
		stats.SupplierCount = int64(len(supplierIDs))

		if len(orderIDs) > 0 {
			result := tx.Where("order_id IN ?", orderIDs).Delete(&entity.Quote{})
			if result.Error != nil {
				return result.Error
			}
			stats.QuoteCount += result.RowsAffected

			if err := tx.Where("order_id IN ?", orderIDs).Delete(&entity.OrderSupplier{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", orderIDs).Delete(&entity.Order{}).Error; err != nil {
				return err
			}
		}

		if len(supplierIDs) > 0 {
			result := tx.Where("supplier_id IN ?", supplierIDs).Delete(&entity.Quote{})
			if result.Error != nil {
				return result.Error
			}
			stats.QuoteCount += result.RowsAffected

			if err := tx.Where("supplier_id IN ?", supplierIDs).Delete(&entity.OrderSupplier{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", supplierIDs).Delete(&entity.Supplier{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&entity.User{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Count 用户总数
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&count).Error
	return count, err
}

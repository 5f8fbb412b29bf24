package repository

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDailyOrderLimit 当日订单流水号已达999上限
	ErrDailyOrderLimit = errors.New("当日订单数量已达上限999个")
	// ErrOrderNoConflict 订单号并发冲突且重试次数用尽
	ErrOrderNoConflict = errors.New("生成唯一订单号失败，重试次数已用尽")
	// ErrSupplierHasQuotes 供应商存在关联报价，拒绝删除
	ErrSupplierHasQuotes = errors.New("该供应商有关联的报价，无法删除")
)

// Scope 数据可见范围（业务类型分区策略）
// 管理员可见全部数据，普通用户仅可见同业务类型分区的数据
type Scope struct {
	UserID       uint
	BusinessType string
	Admin        bool
}

// Apply 将分区过滤应用到查询
func (s Scope) Apply(q *gorm.DB) *gorm.DB {
	if s.Admin {
		return q
	}
	return q.Where("business_type = ?", s.BusinessType)
}

// Repositories 仓库集合
type Repositories struct {
	User     *UserRepository
	Supplier *SupplierRepository
	Order    *OrderRepository
	Quote    *QuoteRepository
}

// NewRepositories 创建仓库集合
// rdb 可为nil，此时供应商访问码查询不走redis缓存
func NewRepositories(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Supplier: NewSupplierRepository(db, rdb),
		Order:    NewOrderRepository(db),
		Quote:    NewQuoteRepository(db),
	}
}

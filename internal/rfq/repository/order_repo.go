package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c1767673917/wlxj/internal/metrics"
	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 订单号格式常量：RX + yymmdd + 3位流水号，共11字符
const (
	orderNoPrefix     = "RX"
	orderNoDateLayout = "060102"
	orderNoLength     = 11
	maxDailySequence  = 999

	// 分配重试预算与线性退避步长
	orderNoMaxAttempts = 5
	orderNoBackoffStep = time.Millisecond
)

// OrderRepository 订单仓库
type OrderRepository struct {
	db *gorm.DB

	// 时钟与休眠可注入，便于测试订单号分配
	now   func() time.Time
	sleep func(time.Duration)
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{
		db:    db,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// FindAll 查询订单列表（业务类型分区过滤）
func (r *OrderRepository) FindAll(ctx context.Context, scope Scope, page, pageSize int, filters map[string]string) ([]entity.Order, int64, error) {
	var items []entity.Order
	var total int64

	query := scope.Apply(r.db.WithContext(ctx).Model(&entity.Order{}))

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("order_no LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Suppliers").
		Preload("SelectedSupplier").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找订单（含邀请的供应商和报价）
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Suppliers").
		Preload("SelectedSupplier").
		Preload("Quotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("price ASC")
		}).
		Preload("Quotes.Supplier").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindOwnedByID 根据ID查找当前用户创建的订单
func (r *OrderRepository) FindOwnedByID(ctx context.Context, id, userID uint) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Suppliers").
		Preload("SelectedSupplier").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindInvitedByID 查找供应商被邀请报价的订单（门户视角）
func (r *OrderRepository) FindInvitedByID(ctx context.Context, id, supplierID uint) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Joins("JOIN order_suppliers ON order_suppliers.order_id = orders.id").
		Where("orders.id = ? AND order_suppliers.supplier_id = ?", id, supplierID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindInvitedActive 查找供应商被邀请且仍在进行中的订单列表
func (r *OrderRepository) FindInvitedActive(ctx context.Context, supplierID uint) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Joins("JOIN order_suppliers ON order_suppliers.order_id = orders.id").
		Where("order_suppliers.supplier_id = ? AND orders.status = ?", supplierID, entity.OrderStatusActive).
		Order("orders.created_at DESC").
		Find(&orders).Error
	return orders, err
}

// Update 更新订单
func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// CountByStatus 按状态统计订单数
func (r *OrderRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&count).Error
	return count, err
}

// TempOrderNo 生成临时占位订单号 TEMP+yymmdd+3位随机后缀
// 正式订单号要求行先落库，占位号只在同一事务内短暂存在
func (r *OrderRepository) TempOrderNo() string {
	suffix := strings.ToUpper(uuid.New().String()[:3])
	return "TEMP" + r.now().Format(orderNoDateLayout) + suffix
}

// NextOrderNo 分配当日下一个订单号
// 扫描当日已有订单号取最大流水号+1；候选号生成后再次确认无冲突，
// 冲突说明存在并发创建，线性退避后整体重试。orders.order_no上的
// 唯一索引是正确性兜底，这里的重试只保证活性
func (r *OrderRepository) NextOrderNo(ctx context.Context, tx *gorm.DB) (string, error) {
	for attempt := 1; attempt <= orderNoMaxAttempts; attempt++ {
		prefix := orderNoPrefix + r.now().Format(orderNoDateLayout)

		var todayNos []string
		if err := tx.WithContext(ctx).Model(&entity.Order{}).
			Where("order_no LIKE ?", prefix+"%").
			Pluck("order_no", &todayNos).Error; err != nil {
			return "", fmt.Errorf("查询当日订单号失败: %w", err)
		}

		maxSeq := 0
		for _, no := range todayNos {
			seq, ok := parseOrderNoSeq(no, prefix)
			if ok && seq > maxSeq {
				maxSeq = seq
			}
		}

		next := maxSeq + 1
		if next > maxDailySequence {
			return "", ErrDailyOrderLimit
		}
		candidate := fmt.Sprintf("%s%03d", prefix, next)

		var count int64
		if err := tx.WithContext(ctx).Model(&entity.Order{}).
			Where("order_no = ?", candidate).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("校验订单号唯一性失败: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}

		metrics.ObserveOrderNoRetry()
		r.sleep(time.Duration(attempt) * orderNoBackoffStep)
	}
	return "", ErrOrderNoConflict
}

// parseOrderNoSeq 解析合规订单号的流水号后缀
// 仅接受长度11、前缀匹配且末3位全为数字的订单号
func parseOrderNoSeq(no, prefix string) (int, bool) {
	if len(no) != orderNoLength || !strings.HasPrefix(no, prefix) {
		return 0, false
	}
	seq := 0
	for _, c := range no[orderNoLength-3:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		seq = seq*10 + int(c-'0')
	}
	return seq, true
}

// InviteSuppliers 为订单追加受邀供应商
func (r *OrderRepository) InviteSuppliers(ctx context.Context, tx *gorm.DB, orderID uint, supplierIDs []uint) error {
	for _, sid := range supplierIDs {
		link := entity.OrderSupplier{OrderID: orderID, SupplierID: sid}
		if err := tx.WithContext(ctx).Create(&link).Error; err != nil {
			return fmt.Errorf("关联供应商失败: %w", err)
		}
	}
	return nil
}

// MarkNotified 标记供应商已通知
func (r *OrderRepository) MarkNotified(ctx context.Context, orderID uint, supplierIDs []uint) error {
	if len(supplierIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.OrderSupplier{}).
		Where("order_id = ? AND supplier_id IN ?", orderID, supplierIDs).
		Update("notified", true).Error
}

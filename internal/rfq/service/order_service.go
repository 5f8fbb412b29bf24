package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoValidSuppliers  = errors.New("请至少选择一个有效的供应商")
	ErrOrderNotActive    = errors.New("订单当前状态不允许该操作")
	ErrOrderNotCompleted = errors.New("仅已完成的订单可以重置")
	ErrQuoteMismatch     = errors.New("所选供应商的报价与提交价格不符")
	ErrSupplierNotQuoted = errors.New("所选供应商尚未对该订单报价")
)

// 选标时提交价格与报价记录允许的最大偏差
var priceTolerance = decimal.NewFromFloat(0.01)

// OrderService 订单服务
type OrderService struct {
	db       *gorm.DB
	orders   *repository.OrderRepository
	supplier *repository.SupplierRepository
	quotes   *repository.QuoteRepository
	notifier *Notifier
	logger   *zap.Logger
}

func NewOrderService(db *gorm.DB, repos *repository.Repositories, notifier *Notifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:       db,
		orders:   repos.Order,
		supplier: repos.Supplier,
		quotes:   repos.Quote,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateOrderInput 创建订单入参
type CreateOrderInput struct {
	Warehouse       string
	Goods           string
	DeliveryAddress string
	SupplierIDs     []uint
}

// Create 创建询价订单
// 事务内先以临时占位号落库拿到ID，再分配正式订单号并回写，
// 同事务关联受邀供应商；提交成功后在事务外推送webhook通知
func (s *OrderService) Create(ctx context.Context, scope repository.Scope, input CreateOrderInput) (*entity.Order, *NotifyResult, error) {
	suppliers, err := s.supplier.FindByIDs(ctx, scope.UserID, input.SupplierIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(suppliers) == 0 {
		return nil, nil, ErrNoValidSuppliers
	}

	order := &entity.Order{
		Warehouse:       input.Warehouse,
		Goods:           input.Goods,
		DeliveryAddress: input.DeliveryAddress,
		Status:          entity.OrderStatusActive,
		UserID:          scope.UserID,
		BusinessType:    scope.BusinessType,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.OrderNo = s.orders.TempOrderNo()
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		orderNo, err := s.orders.NextOrderNo(ctx, tx)
		if err != nil {
			return err
		}
		if err := tx.Model(order).Update("order_no", orderNo).Error; err != nil {
			return fmt.Errorf("更新订单号失败: %w", err)
		}
		order.OrderNo = orderNo

		supplierIDs := make([]uint, 0, len(suppliers))
		for _, sp := range suppliers {
			supplierIDs = append(supplierIDs, sp.ID)
		}
		return s.orders.InviteSuppliers(ctx, tx, order.ID, supplierIDs)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("订单创建成功",
		zap.String("order_no", order.OrderNo),
		zap.Uint("user_id", scope.UserID),
		zap.Int("suppliers", len(suppliers)))

	result, succeeded := s.notifier.NotifySuppliers(ctx, order, suppliers)
	if len(succeeded) > 0 {
		if err := s.orders.MarkNotified(ctx, order.ID, succeeded); err != nil {
			s.logger.Warn("标记通知状态失败", zap.Uint("order_id", order.ID), zap.Error(err))
		}
	}

	return order, result, nil
}

// UpdateOrderInput 编辑订单入参
type UpdateOrderInput struct {
	Warehouse       string
	Goods           string
	DeliveryAddress string
}

// Update 编辑进行中的订单基础信息
func (s *OrderService) Update(ctx context.Context, scope repository.Scope, orderID uint, input UpdateOrderInput) (*entity.Order, error) {
	order, err := s.orders.FindOwnedByID(ctx, orderID, scope.UserID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusActive {
		return nil, ErrOrderNotActive
	}

	order.Warehouse = input.Warehouse
	order.Goods = input.Goods
	order.DeliveryAddress = input.DeliveryAddress
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List 查询订单列表
func (s *OrderService) List(ctx context.Context, scope repository.Scope, page, pageSize int, filters map[string]string) ([]entity.Order, int64, error) {
	return s.orders.FindAll(ctx, scope, page, pageSize, filters)
}

// Get 查询订单详情（业务类型分区过滤）
func (s *OrderService) Get(ctx context.Context, scope repository.Scope, id uint) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Admin && order.BusinessType != scope.BusinessType {
		return nil, repository.ErrNotFound
	}
	return order, nil
}

// InvitedActive 供应商被邀请且进行中的订单列表（门户视角）
func (s *OrderService) InvitedActive(ctx context.Context, supplierID uint) ([]entity.Order, error) {
	return s.orders.FindInvitedActive(ctx, supplierID)
}

// GetInvited 供应商被邀请的订单详情（门户视角）
func (s *OrderService) GetInvited(ctx context.Context, orderID, supplierID uint) (*entity.Order, error) {
	return s.orders.FindInvitedByID(ctx, orderID, supplierID)
}

// SelectSupplier 选定中标供应商并完结订单
// 所选供应商必须已报价，提交价格与其报价偏差不得超过0.01
func (s *OrderService) SelectSupplier(ctx context.Context, scope repository.Scope, orderID, supplierID uint, price decimal.Decimal) (*entity.Order, error) {
	order, err := s.orders.FindOwnedByID(ctx, orderID, scope.UserID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusActive {
		return nil, ErrOrderNotActive
	}

	quote, err := s.quotes.FindByOrderAndSupplier(ctx, orderID, supplierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSupplierNotQuoted
		}
		return nil, err
	}
	if quote.Price.Sub(price).Abs().GreaterThan(priceTolerance) {
		return nil, ErrQuoteMismatch
	}

	order.Status = entity.OrderStatusCompleted
	order.SelectedSupplierID = &supplierID
	order.SelectedPrice = &quote.Price
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("订单选标完成",
		zap.String("order_no", order.OrderNo),
		zap.Uint("supplier_id", supplierID),
		zap.String("price", quote.Price.String()))
	return order, nil
}

// Cancel 取消进行中的订单
func (s *OrderService) Cancel(ctx context.Context, scope repository.Scope, orderID uint) (*entity.Order, error) {
	order, err := s.orders.FindOwnedByID(ctx, orderID, scope.UserID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusActive {
		return nil, ErrOrderNotActive
	}

	order.Status = entity.OrderStatusCancelled
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// AddSuppliers 为进行中的订单追加受邀供应商，仅通知新增者
func (s *OrderService) AddSuppliers(ctx context.Context, scope repository.Scope, orderID uint, supplierIDs []uint) (*NotifyResult, error) {
	order, err := s.orders.FindOwnedByID(ctx, orderID, scope.UserID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusActive {
		return nil, ErrOrderNotActive
	}

	suppliers, err := s.supplier.FindByIDs(ctx, scope.UserID, supplierIDs)
	if err != nil {
		return nil, err
	}

	invited := make(map[uint]bool, len(order.Suppliers))
	for _, sp := range order.Suppliers {
		invited[sp.ID] = true
	}
	var added []entity.Supplier
	for _, sp := range suppliers {
		if !invited[sp.ID] {
			added = append(added, sp)
		}
	}
	if len(added) == 0 {
		return nil, ErrNoValidSuppliers
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, 0, len(added))
		for _, sp := range added {
			ids = append(ids, sp.ID)
		}
		return s.orders.InviteSuppliers(ctx, tx, order.ID, ids)
	})
	if err != nil {
		return nil, err
	}

	result, succeeded := s.notifier.NotifySuppliers(ctx, order, added)
	if len(succeeded) > 0 {
		if err := s.orders.MarkNotified(ctx, order.ID, succeeded); err != nil {
			s.logger.Warn("标记通知状态失败", zap.Uint("order_id", order.ID), zap.Error(err))
		}
	}
	return result, nil
}

// Reactivate 将已完成的订单重置为进行中（管理员操作），清除选标结果
func (s *OrderService) Reactivate(ctx context.Context, orderID uint) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusCompleted {
		return nil, ErrOrderNotCompleted
	}

	order.Status = entity.OrderStatusActive
	order.SelectedSupplierID = nil
	order.SelectedPrice = nil
	if err := s.db.WithContext(ctx).Model(order).
		Select("status", "selected_supplier_id", "selected_price").
		Updates(map[string]interface{}{
			"status":               entity.OrderStatusActive,
			"selected_supplier_id": nil,
			"selected_price":       nil,
		}).Error; err != nil {
		return nil, err
	}

	s.logger.Info("订单已重置为进行中", zap.String("order_no", order.OrderNo))
	return order, nil
}

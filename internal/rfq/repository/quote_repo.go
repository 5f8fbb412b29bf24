package repository

import (
	"context"
	"errors"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteRepository 报价仓库
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// FindByOrderAndSupplier 查找供应商对某订单的报价
func (r *QuoteRepository) FindByOrderAndSupplier(ctx context.Context, orderID, supplierID uint) (*entity.Quote, error) {
	var quote entity.Quote
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND supplier_id = ?", orderID, supplierID).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// ListByOrder 查询订单全部报价，按价格升序
func (r *QuoteRepository) ListByOrder(ctx context.Context, orderID uint) ([]entity.Quote, error) {
	var quotes []entity.Quote
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Where("order_id = ?", orderID).
		Order("price ASC").
		Find(&quotes).Error
	return quotes, err
}

// ListBySupplier 查询供应商的历史报价，按时间倒序
func (r *QuoteRepository) ListBySupplier(ctx context.Context, supplierID uint) ([]entity.Quote, error) {
	var quotes []entity.Quote
	err := r.db.WithContext(ctx).
		Preload("Order").
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").
		Find(&quotes).Error
	return quotes, err
}

// Save 保存报价（新建或更新）
func (r *QuoteRepository) Save(ctx context.Context, quote *entity.Quote) error {
	return r.db.WithContext(ctx).Save(quote).Error
}

// CountByOrder 订单报价数量
func (r *QuoteRepository) CountByOrder(ctx context.Context, orderID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Quote{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

// Count 报价总数
func (r *QuoteRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Quote{}).Count(&count).Error
	return count, err
}

// QuoteSummary 订单报价摘要
type QuoteSummary struct {
	TotalCount    int64            `json:"total_count"`
	LowestPrice   *decimal.Decimal `json:"lowest_price"`
	LowestQuoteID *uint            `json:"lowest_quote_id"`
	SupplierCount int64            `json:"supplier_count"`
	HasQuotes     bool             `json:"has_quotes"`
}

// Summary 聚合订单报价摘要（数量、最低价、参与供应商数）
// 表名取自Quote模型schema缓存，避免每次聚合查询重复解析模型
func (r *QuoteRepository) Summary(ctx context.Context, orderID uint) (*QuoteSummary, error) {
	s, err := entity.QuoteSchema()
	if err != nil {
		return nil, err
	}

	summary := &QuoteSummary{}

	if err := r.db.WithContext(ctx).Table(s.Table).
		Where("order_id = ?", orderID).
		Count(&summary.TotalCount).Error; err != nil {
		return nil, err
	}
	summary.HasQuotes = summary.TotalCount > 0
	if !summary.HasQuotes {
		return summary, nil
	}

	var lowest entity.Quote
	if err := r.db.WithContext(ctx).Table(s.Table).
		Where("order_id = ?", orderID).
		Order("price ASC").
		First(&lowest).Error; err != nil {
		return nil, err
	}
	summary.LowestPrice = &lowest.Price
	summary.LowestQuoteID = &lowest.ID

	if err := r.db.WithContext(ctx).Table(s.Table).
		Where("order_id = ?", orderID).
		Distinct("supplier_id").
		Count(&summary.SupplierCount).Error; err != nil {
		return nil, err
	}

	return summary, nil
}

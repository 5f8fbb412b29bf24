package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote 供应商报价
// 同一订单+供应商只保留一条报价，更新时刷新创建时间
type Quote struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	OrderID      uint            `json:"order_id" gorm:"not null;index;uniqueIndex:idx_quotes_order_supplier"`
	SupplierID   uint            `json:"supplier_id" gorm:"not null;index;uniqueIndex:idx_quotes_order_supplier"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	DeliveryTime string          `json:"delivery_time" gorm:"size:50"`
	Remarks      string          `json:"remarks" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at"`

	// 关联
	Supplier *Supplier `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Order    *Order    `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}

func (Quote) TableName() string {
	return "quotes"
}

// MaxQuotePrice 报价金额上限
var MaxQuotePrice = decimal.RequireFromString("9999999999.99")

// ValidateQuotePrice 校验报价金额：必须为正且不超过上限
func ValidateQuotePrice(price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuotePrice
	}
	if price.GreaterThan(MaxQuotePrice) {
		return ErrQuotePriceTooLarge
	}
	return nil
}

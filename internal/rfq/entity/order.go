package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 询价订单
// OrderNo 格式 RX+yymmdd+3位流水号，全表唯一且分配后不再变更；
// 唯一索引是并发分配的正确性兜底，应用层重试只是活性优化，不可移除
type Order struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	OrderNo            string           `json:"order_no" gorm:"size:50;uniqueIndex;not null"`
	Warehouse          string           `json:"warehouse" gorm:"size:200;not null"`
	Goods              string           `json:"goods" gorm:"type:text;not null"`
	DeliveryAddress    string           `json:"delivery_address" gorm:"size:300;not null"`
	Status             string           `json:"status" gorm:"size:20;default:active"`
	SelectedSupplierID *uint            `json:"selected_supplier_id"`
	SelectedPrice      *decimal.Decimal `json:"selected_price" gorm:"type:decimal(12,2)"`
	UserID             uint             `json:"user_id" gorm:"not null;index"`
	BusinessType       string           `json:"business_type" gorm:"size:20;not null;default:oil"`
	CreatedAt          time.Time        `json:"created_at"`

	// 关联
	Quotes           []Quote    `json:"quotes,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SelectedSupplier *Supplier  `json:"selected_supplier,omitempty" gorm:"foreignKey:SelectedSupplierID"`
	Suppliers        []Supplier `json:"suppliers,omitempty" gorm:"many2many:order_suppliers"`
}

func (Order) TableName() string {
	return "orders"
}

// 订单状态
const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderSupplier 订单-供应商关联（邀请报价记录）
type OrderSupplier struct {
	OrderID    uint `json:"order_id" gorm:"primaryKey"`
	SupplierID uint `json:"supplier_id" gorm:"primaryKey"`
	Notified   bool `json:"notified" gorm:"default:false"`
}

func (OrderSupplier) TableName() string {
	return "order_suppliers"
}

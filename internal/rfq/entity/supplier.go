package entity

import "time"

// Supplier 供应商
// AccessCode 是供应商免密访问报价门户的唯一凭证，由密码学随机源生成
type Supplier struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	AccessCode   string    `json:"access_code" gorm:"size:64;uniqueIndex;not null"`
	WebhookURL   string    `json:"webhook_url" gorm:"type:text"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	BusinessType string    `json:"business_type" gorm:"size:20;not null;default:oil"`
	CreatedAt    time.Time `json:"created_at"`

	// 关联
	Quotes []Quote `json:"quotes,omitempty" gorm:"foreignKey:SupplierID;constraint:OnDelete:CASCADE"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

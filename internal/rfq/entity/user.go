package entity

import "time"

// User 采购方用户
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Password     string    `json:"-" gorm:"size:255;not null"`
	Role         string    `json:"role" gorm:"size:20;default:user"`
	BusinessType string    `json:"business_type" gorm:"size:20;not null;default:oil"`
	CreatedAt    time.Time `json:"created_at"`

	// 关联，删除用户时级联删除其供应商和订单
	Suppliers []Supplier `json:"suppliers,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Orders    []Order    `json:"orders,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 业务类型分区
const (
	BusinessTypeOil        = "oil"
	BusinessTypeFastMoving = "fast_moving"
)

// ValidBusinessType 校验业务类型取值
func ValidBusinessType(bt string) bool {
	return bt == BusinessTypeOil || bt == BusinessTypeFastMoving
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

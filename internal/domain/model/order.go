package model

import "time"

type OrderStatus string

const (
	OrderStatusInitiated OrderStatus = "INITIATED"
	OrderStatusSuccess   OrderStatus = "SUCCESS"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// 注文。INITIATEDで作られ、決済結果でSUCCESS/FAILEDに1回だけ変わる
type Order struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64       `gorm:"not null;index" json:"user_id"`
	ProductID int64       `gorm:"not null;index" json:"product_id"`
	Quantity  int         `gorm:"not null" json:"quantity"`
	Price     float64     `gorm:"not null" json:"price"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	TrxNumber *string     `gorm:"type:varchar(20)" json:"trx_number"`
	CreatedAt time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
}

// "order"は予約語なのでordersにする
func (Order) TableName() string {
	return "orders"
}

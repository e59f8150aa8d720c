package model

import "time"

type PaymentStatus string

const (
	PaymentStatusNew      PaymentStatus = "NEW"
	PaymentStatusCaptured PaymentStatus = "CAPTURED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

// 決済リクエスト。注文と1対1（reference_id）
type PaymentRequest struct {
	PaymentID int64 `gorm:"column:payment_id;primaryKey;autoIncrement" json:"payment_id"`
	//注文ID
	ReferenceID int64         `gorm:"not null;uniqueIndex" json:"reference_id"`
	Price       float64       `gorm:"not null" json:"price"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RedirectURL string        `gorm:"not null" json:"redirect_url"`
	CallbackURL string        `gorm:"not null" json:"callback_url"`
	TrxNumber   *string       `gorm:"type:varchar(20)" json:"trx_number"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Order *Order `gorm:"foreignKey:ReferenceID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PaymentRequest) TableName() string {
	return "payment_request"
}

package model

// 商品カタログ
type Product struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string  `gorm:"type:varchar(255)" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	Price       float64 `gorm:"not null;default:0" json:"price"`
	//拠点コード（一覧の絞り込みに使う）
	Location string `gorm:"type:varchar(100);index" json:"location"`
}

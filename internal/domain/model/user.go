package model

// 登録時のデフォルトロール
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// 会員。登録（create）以外で更新しない
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hashed;not null" json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'User'" json:"role"`
	//登録日時（ISO8601文字列で保存）
	RegisteredOn string `gorm:"type:varchar(40);not null" json:"registered_on"`
}

package model

import "time"

// 監査ログ（リクエスト単位）。
// 「誰が」「どこから」「何を送って」「何が返ったか」を残す。追記のみ。
type AuditTrail struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//匿名アクセスはnil
	UserID *int64 `gorm:"index" json:"user_id"`

	CreationDate time.Time `gorm:"not null;autoCreateTime" json:"creation_date"`

	//IPv6まで入る長さ
	ClientIP string `gorm:"type:varchar(45);not null" json:"client_ip"`

	Method   string `gorm:"type:varchar(10);not null" json:"method"`
	Endpoint string `gorm:"type:varchar(255);not null;index" json:"endpoint"`

	//マスク済み・サイズ上限あり
	RequestBody  *string `gorm:"type:text" json:"request_body"`
	ResponseBody *string `gorm:"type:text" json:"response_body"`

	ResponseStatus  int    `gorm:"not null" json:"response_status"`
	UserAgent       string `gorm:"type:varchar(512)" json:"user_agent"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`

	//X-Request-ID
	RequestID string `gorm:"type:varchar(64);index" json:"request_id"`
}

func (AuditTrail) TableName() string {
	return "audit_trails"
}

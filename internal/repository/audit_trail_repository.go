package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

//監査ログの絞り込み条件。

type AuditTrailFilter struct {
	UserID      *int64
	Endpoint    string
	Method      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// 監査ログの保存・一覧取得の約束。
type AuditTrailRepository interface {
	//監査ログを1件保存
	Create(ctx context.Context, row *model.AuditTrail) error

	//監査ログを条件で一覧取得。
	List(ctx context.Context, filter AuditTrailFilter) ([]model.AuditTrail, error)
}

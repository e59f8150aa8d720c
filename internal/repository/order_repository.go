package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, size int) ([]model.Order, int64, error)

	//INITIATEDのときだけ結果を反映する（0件ならErrStateConflict）
	CompletePayment(ctx context.Context, orderID int64, status model.OrderStatus, trxNumber string) error
}

package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.PaymentRequest) error
	FindByID(ctx context.Context, paymentID int64) (model.PaymentRequest, error)

	//NEWのときだけ遷移させる（0件ならErrStateConflict）
	TransitionFromNew(ctx context.Context, paymentID int64, status model.PaymentStatus, trxNumber string) error
}

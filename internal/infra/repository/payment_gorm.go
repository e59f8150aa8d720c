package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p *model.PaymentRequest) error {
	return translate(r.db.WithContext(ctx).Omit("Order").Create(p).Error)
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID int64) (model.PaymentRequest, error) {
	var p model.PaymentRequest
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&p).Error
	if err != nil {
		return model.PaymentRequest{}, translate(err)
	}
	return p, nil
}

// NEWのときだけ更新する（同時に2回来ても片方だけ通る）
func (r *PaymentGormRepository) TransitionFromNew(ctx context.Context, paymentID int64, status model.PaymentStatus, trxNumber string) error {
	res := r.db.WithContext(ctx).Model(&model.PaymentRequest{}).
		Where("payment_id = ? AND status = ?", paymentID, model.PaymentStatusNew).
		Updates(map[string]interface{}{
			"status":     status,
			"trx_number": trxNumber,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&model.PaymentRequest{}).Where("payment_id = ?", paymentID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return repo.ErrNotFound
		}
		return repo.ErrStateConflict
	}
	return nil
}

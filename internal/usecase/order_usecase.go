package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 決済画面のURLと決済リクエストに入れるURL
type PaymentLinks struct {
	BaseURL     string
	RedirectURL string
	CallbackURL string
}

// 注文数のカウンタ（metricsが満たす）
type OrderMetrics interface {
	OrderInitiated()
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	orders    repo.OrderRepository
	links     PaymentLinks
	validator InputValidator
	metrics   OrderMetrics
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	links PaymentLinks,
	validator InputValidator,
	metrics OrderMetrics,
) *OrderUsecase {
	links.BaseURL = strings.TrimRight(links.BaseURL, "/")
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &OrderUsecase{
		tx:        tx,
		orders:    orders,
		links:     links,
		validator: validator,
		metrics:   metrics,
	}
}

type InitiateOrderInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=100"`
}

type InitiateOrderOutput struct {
	PaymentURL string `json:"payment_url"`
	PaymentID  int64  `json:"payment_id"`
	OrderID    int64  `json:"order_id"`
}

type OrderOutput struct {
	OrderID   int64             `json:"order_id"`
	TrxID     string            `json:"trx_id"`
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Price     float64           `json:"price"`
	Status    model.OrderStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// 注文(INITIATED)と決済リクエスト(NEW)を1Txで作る
func (u *OrderUsecase) Initiate(ctx context.Context, userID int64, in InitiateOrderInput) (InitiateOrderOutput, error) {
	if userID <= 0 {
		return InitiateOrderOutput{}, Unauthorized("Authentication required")
	}
	if err := validateInput(u.validator, in); err != nil {
		return InitiateOrderOutput{}, err
	}

	var out InitiateOrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFound("Product not found")
		}
		if err != nil {
			return Unexpected(err)
		}

		price := orderPrice(p.Price, in.Quantity)

		order := &model.Order{
			UserID:    userID,
			ProductID: p.ID,
			Quantity:  in.Quantity,
			Price:     price,
			Status:    model.OrderStatusInitiated,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return Unexpected(err)
		}

		payment := &model.PaymentRequest{
			ReferenceID: order.ID,
			Price:       price,
			Status:      model.PaymentStatusNew,
			RedirectURL: u.links.RedirectURL,
			CallbackURL: u.links.CallbackURL,
		}
		if err := r.Payments().Create(ctx, payment); err != nil {
			return Unexpected(err)
		}

		out = InitiateOrderOutput{
			PaymentURL: fmt.Sprintf("%s/payment/%d", u.links.BaseURL, payment.PaymentID),
			PaymentID:  payment.PaymentID,
			OrderID:    order.ID,
		}
		return nil
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return InitiateOrderOutput{}, err
		}
		return InitiateOrderOutput{}, Unexpected(err)
	}

	u.metrics.OrderInitiated()
	return out, nil
}

// 自分の注文一覧（新しい順）
func (u *OrderUsecase) ListMine(ctx context.Context, userID int64, page int, size int) (Page[OrderOutput], error) {
	if userID <= 0 {
		return Page[OrderOutput]{}, Unauthorized("Authentication required")
	}
	page, size, err := normalizePaging(page, size)
	if err != nil {
		return Page[OrderOutput]{}, err
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, size)
	if err != nil {
		return Page[OrderOutput]{}, Unexpected(err)
	}

	out := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderOutput(o))
	}
	return NewPage(out, total, page, size), nil
}

// 他人の注文は存在しない扱い
func (u *OrderUsecase) GetMine(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, Unauthorized("Authentication required")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != userID) {
		return OrderOutput{}, NotFound("Order not found")
	}
	if err != nil {
		return OrderOutput{}, Unexpected(err)
	}
	return toOrderOutput(o), nil
}

// 単価×数量（floatの誤差を出さない）
func orderPrice(unit float64, quantity int) float64 {
	return decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

func toOrderOutput(o model.Order) OrderOutput {
	trx := ""
	if o.TrxNumber != nil {
		trx = *o.TrxNumber
	}
	return OrderOutput{
		OrderID:   o.ID,
		TrxID:     trx,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}

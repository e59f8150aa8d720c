package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 決済結果のカウンタ（metricsが満たす）
type PaymentMetrics interface {
	PaymentProcessed(status string)
}

type nopMetrics struct{}

func (nopMetrics) OrderInitiated()         {}
func (nopMetrics) PaymentProcessed(string) {}

type CardDetails struct {
	Number     string
	CVV        string
	ExpiryDate string
}

// 引き落とし。falseは拒否（エラーではない）
type PaymentGateway interface {
	Charge(ctx context.Context, card CardDetails, amount float64) (bool, error)
}

// カード番号が0000で終わると拒否するモック
type MockGateway struct{}

func (MockGateway) Charge(_ context.Context, card CardDetails, _ float64) (bool, error) {
	return !strings.HasSuffix(card.Number, "0000"), nil
}

const (
	trxAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trxLength   = 7
)

// 取引番号（英大文字+数字7桁）
func NewTransactionReference() (string, error) {
	b := make([]byte, trxLength)
	limit := big.NewInt(int64(len(trxAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = trxAlphabet[n.Int64()]
	}
	return string(b), nil
}

type PaymentUsecase struct {
	tx        repo.TransactionManager
	payments  repo.PaymentRepository
	gateway   PaymentGateway
	newTrx    func() (string, error)
	validator InputValidator
	metrics   PaymentMetrics
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	payments repo.PaymentRepository,
	gateway PaymentGateway,
	validator InputValidator,
	metrics PaymentMetrics,
) *PaymentUsecase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &PaymentUsecase{
		tx:        tx,
		payments:  payments,
		gateway:   gateway,
		newTrx:    NewTransactionReference,
		validator: validator,
		metrics:   metrics,
	}
}

// テスト用
func (u *PaymentUsecase) WithReferenceGenerator(gen func() (string, error)) *PaymentUsecase {
	cp := *u
	cp.newTrx = gen
	return &cp
}

type ProcessPaymentInput struct {
	PaymentID  int64  `json:"payment_id" validate:"required,gt=0"`
	CardNumber string `json:"card_number" validate:"required,min=4,max=32"`
	CVV        string `json:"cvv" validate:"required,min=3,max=4"`
	ExpiryDate string `json:"expiry_date" validate:"required,max=7"`
}

type PaymentCallback struct {
	ReferenceID int64               `json:"reference_id"`
	TrxNumber   string              `json:"trx_number"`
	Status      model.PaymentStatus `json:"status"`
}

type PaymentDetail struct {
	PaymentID   int64               `json:"payment_id"`
	ReferenceID int64               `json:"reference_id"`
	Price       float64             `json:"price"`
	Status      model.PaymentStatus `json:"status"`
	RedirectURL string              `json:"redirect_url"`
	CallbackURL string              `json:"callback_url"`
	TrxNumber   *string             `json:"trx_number"`
	CreatedAt   time.Time           `json:"created_at"`
}

type PaymentStatusOutput struct {
	PaymentID   int64               `json:"payment_id"`
	Status      model.PaymentStatus `json:"status"`
	TrxNumber   *string             `json:"trx_number"`
	Amount      float64             `json:"amount"`
	ReferenceID int64               `json:"reference_id"`
}

// NEWの決済を1回だけ確定させ、注文にも結果を反映する
func (u *PaymentUsecase) Process(ctx context.Context, in ProcessPaymentInput) (PaymentCallback, error) {
	in.CardNumber = strings.ReplaceAll(strings.TrimSpace(in.CardNumber), " ", "")
	if err := validateInput(u.validator, in); err != nil {
		return PaymentCallback{}, err
	}

	pay, err := u.findPayment(ctx, in.PaymentID)
	if err != nil {
		return PaymentCallback{}, err
	}
	if pay.Status != model.PaymentStatusNew {
		return PaymentCallback{}, alreadyProcessed(pay.Status)
	}

	approved, err := u.gateway.Charge(ctx, CardDetails{
		Number:     in.CardNumber,
		CVV:        in.CVV,
		ExpiryDate: in.ExpiryDate,
	}, pay.Price)
	if err != nil {
		return PaymentCallback{}, Unexpected(err)
	}

	trx, err := u.newTrx()
	if err != nil {
		return PaymentCallback{}, Unexpected(err)
	}

	payStatus := model.PaymentStatusFailed
	orderStatus := model.OrderStatusFailed
	if approved {
		payStatus = model.PaymentStatusCaptured
		orderStatus = model.OrderStatusSuccess
	}

	//NEWからの遷移と注文の更新は同じTx。どちらかが0件なら全部戻す
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		err := r.Payments().TransitionFromNew(ctx, pay.PaymentID, payStatus, trx)
		switch {
		case errors.Is(err, repo.ErrStateConflict):
			return alreadyProcessed("")
		case errors.Is(err, repo.ErrNotFound):
			return paymentNotFound(pay.PaymentID)
		case err != nil:
			return Unexpected(err)
		}

		err = r.Orders().CompletePayment(ctx, pay.ReferenceID, orderStatus, trx)
		switch {
		case errors.Is(err, repo.ErrStateConflict):
			return Conflict(http.StatusConflict, "Order already completed")
		case errors.Is(err, repo.ErrNotFound):
			return NotFound("Order not found")
		case err != nil:
			return Unexpected(err)
		}
		return nil
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return PaymentCallback{}, err
		}
		return PaymentCallback{}, Unexpected(err)
	}

	u.metrics.PaymentProcessed(string(payStatus))

	return PaymentCallback{
		ReferenceID: pay.ReferenceID,
		TrxNumber:   trx,
		Status:      payStatus,
	}, nil
}

func (u *PaymentUsecase) Get(ctx context.Context, paymentID int64) (PaymentDetail, error) {
	pay, err := u.findPayment(ctx, paymentID)
	if err != nil {
		return PaymentDetail{}, err
	}
	return PaymentDetail{
		PaymentID:   pay.PaymentID,
		ReferenceID: pay.ReferenceID,
		Price:       pay.Price,
		Status:      pay.Status,
		RedirectURL: pay.RedirectURL,
		CallbackURL: pay.CallbackURL,
		TrxNumber:   pay.TrxNumber,
		CreatedAt:   pay.CreatedAt,
	}, nil
}

func (u *PaymentUsecase) Status(ctx context.Context, paymentID int64) (PaymentStatusOutput, error) {
	pay, err := u.findPayment(ctx, paymentID)
	if err != nil {
		return PaymentStatusOutput{}, err
	}
	return PaymentStatusOutput{
		PaymentID:   pay.PaymentID,
		Status:      pay.Status,
		TrxNumber:   pay.TrxNumber,
		Amount:      pay.Price,
		ReferenceID: pay.ReferenceID,
	}, nil
}

func (u *PaymentUsecase) findPayment(ctx context.Context, paymentID int64) (model.PaymentRequest, error) {
	if paymentID <= 0 {
		return model.PaymentRequest{}, paymentNotFound(paymentID)
	}
	pay, err := u.payments.FindByID(ctx, paymentID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.PaymentRequest{}, paymentNotFound(paymentID)
	}
	if err != nil {
		return model.PaymentRequest{}, Unexpected(err)
	}
	return pay, nil
}

func paymentNotFound(paymentID int64) error {
	return NotFound("Payment not found", fmt.Sprintf("No payment found with ID %d", paymentID))
}

func alreadyProcessed(status model.PaymentStatus) error {
	if status == "" {
		return Conflict(http.StatusConflict, "Payment already processed")
	}
	return Conflict(http.StatusConflict, "Payment already processed",
		fmt.Sprintf("Payment already processed with status: %s", status))
}

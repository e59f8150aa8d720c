package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/security"
	"storefront/internal/validator"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// user repo
// =====================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

// =====================
// product repo
// =====================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockProductRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *mockProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Product), args.Error(1)
}

func (m *mockProductRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProductRepo) CreateBatch(ctx context.Context, products []model.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}

// =====================
// order repo
// =====================

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByUserID(ctx context.Context, userID int64, page int, size int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, size)
	items, _ := args.Get(0).([]model.Order)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderRepo) CompletePayment(ctx context.Context, orderID int64, status model.OrderStatus, trxNumber string) error {
	args := m.Called(ctx, orderID, status, trxNumber)
	return args.Error(0)
}

// =====================
// payment repo
// =====================

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *model.PaymentRequest) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, paymentID int64) (model.PaymentRequest, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(model.PaymentRequest), args.Error(1)
}

func (m *mockPaymentRepo) TransitionFromNew(ctx context.Context, paymentID int64, status model.PaymentStatus, trxNumber string) error {
	args := m.Called(ctx, paymentID, status, trxNumber)
	return args.Error(0)
}

// =====================
// tx
// =====================

type fakeTxRepos struct {
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	products repo.ProductRepository
}

func (r *fakeTxRepos) Orders() repo.OrderRepository     { return r.orders }
func (r *fakeTxRepos) Payments() repo.PaymentRepository { return r.payments }
func (r *fakeTxRepos) Products() repo.ProductRepository { return r.products }

// fnをそのまま呼ぶだけ（ロールバックはrepoのテストで見る）
type fakeTxManager struct {
	repos *fakeTxRepos
	calls int
}

func (tm *fakeTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	tm.calls++
	return fn(tm.repos)
}

// =====================
// metrics
// =====================

type countingMetrics struct {
	orders   int
	payments map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{payments: map[string]int{}}
}

func (m *countingMetrics) OrderInitiated()                { m.orders++ }
func (m *countingMetrics) PaymentProcessed(status string) { m.payments[status]++ }

// =====================
// helpers
// =====================

func newTestTokens() *security.TokenService {
	s, err := security.NewTokenService("usecase-secret", "HS256", 30*time.Minute, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return s
}

func newTestHasher() security.PasswordHasher {
	return security.NewBcryptPasswordHasher(bcrypt.MinCost)
}

func newTestValidator() InputValidator {
	return validator.New()
}

package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"
)

// =====================
// TxManager / TxRepos
// =====================

// TxManagerMock は WithinTx の中で固定のreposを渡す。fnのエラーはそのまま返す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	promotions repo.PromotionRepository
	users      repo.UserRepository
	audits     repo.AuditLogRepository
	outbox     repo.OutboxRepository
	cards      repo.CardPaymentRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository             { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository         { return r.products }
func (r *TxReposMock) Promotions() repo.PromotionRepository     { return r.promotions }
func (r *TxReposMock) Users() repo.UserRepository               { return r.users }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository       { return r.audits }
func (r *TxReposMock) Outbox() repo.OutboxRepository            { return r.outbox }
func (r *TxReposMock) CardPayments() repo.CardPaymentRepository { return r.cards }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *OrderRepoMock) ChangeStatus(ctx context.Context, orderID int64, ch repo.StatusChange) error {
	return m.Called(ctx, orderID, ch).Error(0)
}

func (m *OrderRepoMock) MarkPaid(ctx context.Context, orderID int64, p repo.MarkPaidParams) (bool, error) {
	args := m.Called(ctx, orderID, p)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) SetPaymentResult(ctx context.Context, orderID int64, result model.PaymentResult) error {
	return m.Called(ctx, orderID, result).Error(0)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	args := m.Called(ctx, userID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	return m.Called(ctx, orderID, items).Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	return m.Called(ctx, productID, newStock).Error(0)
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	return m.Called(ctx, productID, qty).Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	return m.Called(ctx, adjustment).Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) ListTop(ctx context.Context, limit int) ([]model.Product, error) {
	args := m.Called(ctx, limit)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Error(1)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(model.Product)
	return out, args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *ProductRepoMock) SoftDelete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type PromotionRepoMock struct{ mock.Mock }

func (m *PromotionRepoMock) Create(ctx context.Context, p model.Promotion) (model.Promotion, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(model.Promotion)
	return out, args.Error(1)
}

func (m *PromotionRepoMock) Update(ctx context.Context, p model.Promotion) error {
	return m.Called(ctx, p).Error(0)
}

func (m *PromotionRepoMock) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *PromotionRepoMock) FindByID(ctx context.Context, id int64) (model.Promotion, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Promotion)
	return p, args.Error(1)
}

func (m *PromotionRepoMock) FindByCode(ctx context.Context, code string) (model.Promotion, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(model.Promotion)
	return p, args.Error(1)
}

func (m *PromotionRepoMock) List(ctx context.Context) ([]model.Promotion, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]model.Promotion)
	return ps, args.Error(1)
}

func (m *PromotionRepoMock) ListActiveProductDiscounts(ctx context.Context, now time.Time) ([]model.Promotion, error) {
	args := m.Called(ctx, now)
	ps, _ := args.Get(0).([]model.Promotion)
	return ps, args.Error(1)
}

func (m *PromotionRepoMock) CommitUsage(ctx context.Context, code string, discount int64, orderTotal int64) (bool, error) {
	args := m.Called(ctx, code, discount, orderTotal)
	return args.Bool(0), args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *UserRepoMock) ListReachable(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	us, _ := args.Get(0).([]model.User)
	return us, args.Error(1)
}

type AuditLogRepoMock struct{ mock.Mock }

func (m *AuditLogRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditLogRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// OutboxRepoMock は保存されたイベントを溜める
type OutboxRepoMock struct {
	mock.Mock
	Saved []model.OutboxEvent
}

func (m *OutboxRepoMock) Save(ctx context.Context, e model.OutboxEvent) error {
	err := m.Called(ctx, e).Error(0)
	if err == nil {
		m.Saved = append(m.Saved, e)
	}
	return err
}

func (m *OutboxRepoMock) FetchUnpublished(ctx context.Context, batchSize int, maxAttempts int) ([]model.OutboxEvent, error) {
	panic("not used in usecase tests")
}

func (m *OutboxRepoMock) MarkPublished(ctx context.Context, eventID int64) error {
	panic("not used in usecase tests")
}

func (m *OutboxRepoMock) MarkFailed(ctx context.Context, eventID int64, errMsg string) error {
	panic("not used in usecase tests")
}

func (m *OutboxRepoMock) types() []string {
	out := make([]string, 0, len(m.Saved))
	for _, e := range m.Saved {
		out = append(out, e.EventType)
	}
	return out
}

type CardPaymentRepoMock struct{ mock.Mock }

func (m *CardPaymentRepoMock) Claim(ctx context.Context, p model.CardPayment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *CardPaymentRepoMock) FindByIntentID(ctx context.Context, intentID string) (model.CardPayment, error) {
	args := m.Called(ctx, intentID)
	p, _ := args.Get(0).(model.CardPayment)
	return p, args.Error(1)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Address)
	return list, args.Error(1)
}

func (m *AddressRepoMock) FindForUser(ctx context.Context, userID, addressID int64) (model.Address, error) {
	args := m.Called(ctx, userID, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) FindDefault(ctx context.Context, userID int64) (model.Address, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) Update(ctx context.Context, address model.Address) error {
	return m.Called(ctx, address).Error(0)
}

func (m *AddressRepoMock) Delete(ctx context.Context, userID, addressID int64) error {
	return m.Called(ctx, userID, addressID).Error(0)
}

func (m *AddressRepoMock) SetDefault(ctx context.Context, userID, addressID int64) error {
	return m.Called(ctx, userID, addressID).Error(0)
}

// =====================
// Gateway mocks
// =====================

type QRGatewayMock struct{ mock.Mock }

func (m *QRGatewayMock) Generate(ctx context.Context, amount int64, reference string) (model.QRCharge, error) {
	args := m.Called(ctx, amount, reference)
	qr, _ := args.Get(0).(model.QRCharge)
	return qr, args.Error(1)
}

func (m *QRGatewayMock) Check(ctx context.Context, md5 string) (bool, error) {
	args := m.Called(ctx, md5)
	return args.Bool(0), args.Error(1)
}

type CardGatewayMock struct{ mock.Mock }

func (m *CardGatewayMock) CreateIntent(ctx context.Context, amount int64, userID int64) (model.CardIntent, error) {
	args := m.Called(ctx, amount, userID)
	pi, _ := args.Get(0).(model.CardIntent)
	return pi, args.Error(1)
}

func (m *CardGatewayMock) Retrieve(ctx context.Context, intentID string) (model.CardIntent, error) {
	args := m.Called(ctx, intentID)
	pi, _ := args.Get(0).(model.CardIntent)
	return pi, args.Error(1)
}

// ロックは取れる/取れない/エラーを切り替える
type pollLockStub struct {
	ok       bool
	err      error
	released int
}

func (s *pollLockStub) TryLock(ctx context.Context, orderID int64) (func(), bool, error) {
	if s.err != nil || !s.ok {
		return nil, false, s.err
	}
	return func() { s.released++ }, true, nil
}

// =====================
// Helper
// =====================

func assertHTTPError(t *testing.T, err error, status int, wantSubstr string) {
	t.Helper()
	he, ok := AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
		assert.True(t, strings.Contains(he.Message, wantSubstr), "message=%q want contains %q", he.Message, wantSubstr)
	}
}

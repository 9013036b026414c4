package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/domain/pricing"
	repo "petstore/internal/repository"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type orderFixture struct {
	tx        *TxManagerMock
	orders    *OrderRepoMock
	items     *OrderItemRepoMock
	inventory *InventoryRepoMock
	products  *ProductRepoMock
	promos    *PromotionRepoMock
	users     *UserRepoMock
	audits    *AuditLogRepoMock
	outbox    *OutboxRepoMock
	cards     *CardPaymentRepoMock
	addresses *AddressRepoMock
	qr        *QRGatewayMock
	card      *CardGatewayMock
	lock      *pollLockStub
	uc        *OrderUsecase
}

func testPolicy() pricing.Policy {
	return pricing.PolicyFromConfig(config.Pricing{TaxRate: 0.08, ShippingFee: 500, FreeShippingThreshold: 5000})
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		tx:        new(TxManagerMock),
		orders:    new(OrderRepoMock),
		items:     new(OrderItemRepoMock),
		inventory: new(InventoryRepoMock),
		products:  new(ProductRepoMock),
		promos:    new(PromotionRepoMock),
		users:     new(UserRepoMock),
		audits:    new(AuditLogRepoMock),
		outbox:    new(OutboxRepoMock),
		cards:     new(CardPaymentRepoMock),
		addresses: new(AddressRepoMock),
		qr:        new(QRGatewayMock),
		card:      new(CardGatewayMock),
		lock:      &pollLockStub{ok: true},
	}
	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		inventory:  f.inventory,
		products:   f.products,
		promotions: f.promos,
		users:      f.users,
		audits:     f.audits,
		outbox:     f.outbox,
		cards:      f.cards,
	}
	f.tx.On("WithinTx", mock.Anything).Return()
	f.outbox.On("Save", mock.Anything, mock.Anything).Return(nil)

	log := zap.NewNop()
	pricer := NewPricer(f.products, f.promos, testPolicy())
	f.uc = NewOrderUsecase(
		f.tx, f.orders, f.items, f.users, f.addresses,
		pricer,
		NewPaymentStrategies(f.card, f.qr, log),
		f.lock,
		nil,
		log,
	)
	f.uc.now = func() time.Time { return fixedNow }
	f.uc.newRef = func() string { return "c0ffee00-0000-0000-0000-0090abcdef12" }
	return f
}

var dogFood = model.Product{ID: 1, Name: "Dog Food", Price: 1000, Stock: 10, IsActive: true, ImageURL: "/img/dog.png"}

var customer = &model.User{ID: 7, Email: "sam@example.com", FirstName: "Sam", Role: model.RoleCustomer}

func shippingTo() *model.ShippingAddress {
	return &model.ShippingAddress{Address: "12 Street 5", City: "Phnom Penh", PostalCode: "12000", Country: "KH"}
}

func save10() model.Promotion {
	return model.Promotion{
		ID:           3,
		Code:         "SAVE10",
		Type:         model.PromotionTypePercent,
		Value:        10,
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      time.Now().Add(time.Hour),
		IsActive:     true,
		CampaignType: model.CampaignPromoCode,
	}
}

// 在庫を減らしてからの通常フロー
func (f *orderFixture) expectCheckout(orderID int64) {
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.items.On("CreateBulk", mock.Anything, orderID, mock.Anything).Return(nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(2)).Return(true, nil)
}

func TestOrderUsecase_Create_COD_ServerSideTotals(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(101)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.ItemsPrice == 2000 && o.TaxPrice == 160 && o.ShippingPrice == 500 && o.TotalPrice == 2660
	})).Return(int64(101), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
	})
	require.NoError(t, err)

	assert.False(t, out.Replayed)
	assert.Equal(t, int64(101), out.Order.ID)
	assert.Equal(t, int64(2660), out.Order.TotalPrice)
	assert.Equal(t, "Pending", out.Order.Status)
	assert.False(t, out.Order.IsPaid)
	assert.Equal(t, []string{"order_confirmation", "order.created"}, f.outbox.types())

	// 明細は注文時点の価格を保存する
	require.Len(t, out.Order.Items, 1)
	assert.Equal(t, int64(1000), out.Order.Items[0].Price)
	f.promos.AssertNotCalled(t, "CommitUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Create_WithPromotion(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(102)
	f.promos.On("FindByCode", mock.Anything, "SAVE10").Return(save10(), nil)
	f.promos.On("CommitUsage", mock.Anything, "SAVE10", int64(200), int64(2460)).Return(true, nil).Once()
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.DiscountPrice == 200 && o.TotalPrice == 2460 && o.PromotionCode == "SAVE10"
	})).Return(int64(102), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		PromotionCode:   " save10 ",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200), out.Order.DiscountPrice)
	assert.Equal(t, int64(2460), out.Order.TotalPrice)
	f.promos.AssertNumberOfCalls(t, "CommitUsage", 1)
}

func TestOrderUsecase_Create_MergesDuplicateItems(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(103)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(103), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 1}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.Len(t, out.Order.Items, 1)
	assert.Equal(t, int64(2), out.Order.Items[0].Quantity)
}

func TestOrderUsecase_Create_InsufficientStock_NoMutation(t *testing.T) {
	f := newOrderFixture()
	low := dogFood
	low.Stock = 1
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(low, nil)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
	})

	assertHTTPError(t, err, http.StatusBadRequest, "Insufficient stock for Dog Food")
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	f.inventory.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.outbox.Saved)
}

func TestOrderUsecase_Create_StockTakenConcurrently(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.promos.On("FindByCode", mock.Anything, "SAVE10").Return(save10(), nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(104), nil)
	f.items.On("CreateBulk", mock.Anything, int64(104), mock.Anything).Return(nil)
	// 確認後に他の注文が在庫を取った
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(2)).Return(false, nil)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		PromotionCode:   "SAVE10",
	})

	assertHTTPError(t, err, http.StatusBadRequest, "Insufficient stock")
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	f.promos.AssertNotCalled(t, "CommitUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.outbox.Saved)
}

func TestOrderUsecase_Create_PromotionCapReachedAtCommit(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(105)
	f.promos.On("FindByCode", mock.Anything, "SAVE10").Return(save10(), nil)
	f.promos.On("CommitUsage", mock.Anything, "SAVE10", int64(200), int64(2460)).Return(false, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(105), nil)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		PromotionCode:   "SAVE10",
	})

	assertHTTPError(t, err, http.StatusBadRequest, "Usage limit reached")
	assert.True(t, errors.Is(err, ErrPromotionRejected))
	assert.Empty(t, f.outbox.Saved)
}

func TestOrderUsecase_Create_UnknownPromotion(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.promos.On("FindByCode", mock.Anything, "NOPE").Return(nil, repo.ErrNotFound)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		PromotionCode:   "nope",
	})

	assertHTTPError(t, err, http.StatusNotFound, "Invalid or expired code")
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_Create_ProductNotFound(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(9)).Return(nil, repo.ErrNotFound)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 9, Quantity: 1}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
	})

	assertHTTPError(t, err, http.StatusNotFound, "Product not found: 9")
}

func TestOrderUsecase_Create_KHQR(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(106)
	f.qr.On("Generate", mock.Anything, int64(2660), "c0ffee00-0000-0000-0000-0090abcdef12").Return(model.QRCharge{
		QRString: "00020101021229...6304ABCD",
		MD5:      "5d41402abc4b2a76b9719d911017c592",
		Image:    "data:image/png;base64,AAAA",
	}, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.PaymentResult.ID == "5d41402abc4b2a76b9719d911017c592" &&
			o.PaymentResult.Status == model.PaymentStatusPending &&
			o.QRCode == "00020101021229...6304ABCD" && !o.IsPaid
	})).Return(int64(106), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodKHQR,
	})
	require.NoError(t, err)

	assert.Equal(t, "data:image/png;base64,AAAA", out.Order.QRImage)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", out.Order.MD5)
	assert.Equal(t, []string{"payment_pending", "order.created"}, f.outbox.types())

	var n model.Notification
	require.NoError(t, json.Unmarshal([]byte(f.outbox.Saved[0].Payload), &n))
	assert.Equal(t, "sam@example.com", n.To)
	assert.Equal(t, int64(2660), n.Total)
}

func TestOrderUsecase_Create_QRFailure_NoOrder(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.qr.On("Generate", mock.Anything, int64(2660), mock.Anything).Return(nil, errors.New("bakong: 503"))

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodKHQR,
	})

	assertHTTPError(t, err, http.StatusBadGateway, "payment provider unavailable")
	assert.True(t, errors.Is(err, ErrPaymentGateway))
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Create_QRRejected(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.qr.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(nil, model.ErrPaymentRejected)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodKHQR,
	})

	assertHTTPError(t, err, http.StatusBadRequest, "Failed to generate KHQR")
}

func TestOrderUsecase_Create_CardWithIntent(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(107)
	f.card.On("Retrieve", mock.Anything, "pi_123").Return(model.CardIntent{
		ID: "pi_123", Status: model.CardIntentSucceeded, Amount: 2660, Email: "sam@example.com",
	}, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.IsPaid && o.PaymentResult.ID == "pi_123" && o.PaymentResult.Status == model.PaymentStatusSuccess
	})).Return(int64(107), nil)
	f.cards.On("Claim", mock.Anything, model.CardPayment{
		IntentID: "pi_123", OrderID: 107, UserID: 7, Amount: 2660, CreatedAt: fixedNow,
	}).Return(nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCard,
		PaymentIntentID: "pi_123",
	})
	require.NoError(t, err)
	assert.True(t, out.Order.IsPaid)
	f.cards.AssertExpectations(t)
}

func TestOrderUsecase_Create_CardIntentUsedTwice(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.items.On("CreateBulk", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(2)).Return(true, nil)
	f.card.On("Retrieve", mock.Anything, "pi_once").Return(model.CardIntent{
		ID: "pi_once", Status: model.CardIntentSucceeded, Amount: 2660, UserID: 7,
	}, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(201), nil).Once()
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(202), nil).Once()
	f.cards.On("Claim", mock.Anything, mock.MatchedBy(func(p model.CardPayment) bool {
		return p.IntentID == "pi_once" && p.OrderID == 201
	})).Return(nil).Once()
	f.cards.On("Claim", mock.Anything, mock.MatchedBy(func(p model.CardPayment) bool {
		return p.IntentID == "pi_once" && p.OrderID == 202
	})).Return(repo.ErrConflict).Once()

	in := CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCard,
		PaymentIntentID: "pi_once",
	}

	first, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, in)
	require.NoError(t, err)
	assert.True(t, first.Order.IsPaid)

	_, err = f.uc.Create(context.Background(), Viewer{UserID: 7}, in)
	assertHTTPError(t, err, http.StatusBadRequest, "Payment intent already used")
	assert.True(t, errors.Is(err, ErrPaymentGateway))
	// 2件目は通知もイベントも積まない
	assert.Len(t, f.outbox.Saved, 2)
}

func TestOrderUsecase_Create_CardIntentOfAnotherUser(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.card.On("Retrieve", mock.Anything, "pi_other").Return(model.CardIntent{
		ID: "pi_other", Status: model.CardIntentSucceeded, Amount: 2660, UserID: 8,
	}, nil)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCard,
		PaymentIntentID: "pi_other",
	})

	assertHTTPError(t, err, http.StatusBadRequest, "Invalid payment intent")
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_Create_CardAmountMismatch(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(dogFood, nil)
	f.card.On("Retrieve", mock.Anything, "pi_123").Return(model.CardIntent{
		ID: "pi_123", Status: model.CardIntentSucceeded, Amount: 100,
	}, nil)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCard,
		PaymentIntentID: "pi_123",
	})

	assertHTTPError(t, err, http.StatusBadRequest, "does not match")
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_Create_IdempotentReplay(t *testing.T) {
	f := newOrderFixture()
	existing := model.Order{ID: 55, UserID: 7, TotalPrice: 2660, Status: model.OrderStatusPending}
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "k-1").Return(existing, true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(55)).Return([]model.OrderItem{}, nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		IdempotencyKey:  "k-1",
	})
	require.NoError(t, err)

	assert.True(t, out.Replayed)
	assert.Equal(t, int64(55), out.Order.ID)
	f.products.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_Create_MarkPaidRequiresAdmin(t *testing.T) {
	f := newOrderFixture()

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
		MarkPaid:        true,
	})
	assertHTTPError(t, err, http.StatusUnauthorized, "unauthorized")
}

func TestOrderUsecase_Create_AdminBackfillSkipsQR(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(108)
	paidAt := fixedNow.Add(-24 * time.Hour)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.IsPaid && o.PaidAt.Equal(paidAt) &&
			o.PaymentResult.Status == model.PaymentStatusSuccess && o.QRCode == ""
	})).Return(int64(108), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7, IsAdmin: true}, CreateOrderInput{
		Items:           []CheckoutItem{{ProductID: 1, Quantity: 2}},
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodKHQR,
		MarkPaid:        true,
		PaidAt:          &paidAt,
	})
	require.NoError(t, err)

	assert.True(t, out.Order.IsPaid)
	assert.Empty(t, out.Order.QRString)
	f.qr.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_Create_Validation(t *testing.T) {
	f := newOrderFixture()

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		ShippingAddress: shippingTo(),
		PaymentMethod:   "paypal",
	})
	assertHTTPError(t, err, http.StatusBadRequest, "invalid payment method")

	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	_, err = f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		ShippingAddress: shippingTo(),
		PaymentMethod:   model.PaymentMethodCOD,
	})
	assertHTTPError(t, err, http.StatusBadRequest, "No order items")

	f.addresses.On("FindDefault", mock.Anything, int64(7)).Return(model.Address{}, repo.ErrNotFound)
	_, err = f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 1}},
		PaymentMethod: model.PaymentMethodCOD,
	})
	assertHTTPError(t, err, http.StatusBadRequest, "shipping address required")
}

func TestOrderUsecase_Create_AddressOfAnotherUser(t *testing.T) {
	f := newOrderFixture()
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.addresses.On("FindForUser", mock.Anything, int64(7), int64(4)).Return(model.Address{}, repo.ErrNotFound)

	_, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 1}},
		AddressID:     4,
		PaymentMethod: model.PaymentMethodCOD,
	})
	assertHTTPError(t, err, http.StatusNotFound, "address not found")
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 配送先を省略するとアドレス帳のデフォルトを使う
func TestOrderUsecase_Create_DefaultAddress(t *testing.T) {
	f := newOrderFixture()
	f.expectCheckout(110)
	f.addresses.On("FindDefault", mock.Anything, int64(7)).Return(model.Address{
		ID: 9, UserID: 7, Name: "Sam", Address: "7 Riverside", City: "Phnom Penh", PostalCode: "12000", Country: "KH", IsDefault: true,
	}, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.ShippingAddress.Address == "7 Riverside" && o.ShippingAddress.Country == "KH"
	})).Return(int64(110), nil)

	out, err := f.uc.Create(context.Background(), Viewer{UserID: 7}, CreateOrderInput{
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 2}},
		PaymentMethod: model.PaymentMethodCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, "7 Riverside", out.Order.ShippingAddress.Address)
}

// =====================
// PollPayment
// =====================

func khqrOrder() model.Order {
	return model.Order{
		ID:            5,
		UserID:        7,
		PaymentMethod: model.PaymentMethodKHQR,
		TotalPrice:    2660,
		Status:        model.OrderStatusPending,
		PaymentResult: model.PaymentResult{ID: "md5-abc", Status: model.PaymentStatusPending},
	}
}

func TestOrderUsecase_PollPayment_NotYetPaid(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.qr.On("Check", mock.Anything, "md5-abc").Return(false, nil)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)

	assert.False(t, out.Paid)
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	f.orders.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.lock.released)
}

func TestOrderUsecase_PollPayment_ConfirmedFlipsOnce(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil).Once()
	f.qr.On("Check", mock.Anything, "md5-abc").Return(true, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.orders.On("MarkPaid", mock.Anything, int64(5), mock.MatchedBy(func(p repo.MarkPaidParams) bool {
		return p.Advance && p.Result.ID == "md5-abc" && p.Result.Status == model.PaymentStatusSuccess
	})).Return(true, nil).Once()

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.True(t, out.Paid)
	assert.Equal(t, []string{"payment_received", "order.paid"}, f.outbox.types())

	var ev model.OrderEvent
	require.NoError(t, json.Unmarshal([]byte(f.outbox.Saved[1].Payload), &ev))
	assert.Equal(t, model.OrderStatusProcessing, ev.Status)
	assert.True(t, ev.IsPaid)

	// 2回目は入金済みの注文を読むだけ
	paid := khqrOrder()
	paid.IsPaid = true
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(paid, nil)

	out, err = f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.True(t, out.Paid)
	f.qr.AssertNumberOfCalls(t, "Check", 1)
	f.orders.AssertNumberOfCalls(t, "MarkPaid", 1)
	assert.Len(t, f.outbox.Saved, 2)
}

func TestOrderUsecase_PollPayment_LostRaceDoesNotNotifyTwice(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.qr.On("Check", mock.Anything, "md5-abc").Return(true, nil)
	// 別のリクエストが先に反映した
	f.orders.On("MarkPaid", mock.Anything, int64(5), mock.Anything).Return(false, nil)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.True(t, out.Paid)
	assert.Empty(t, f.outbox.Saved)
}

func TestOrderUsecase_PollPayment_ProviderErrorIsNotPaid(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.qr.On("Check", mock.Anything, "md5-abc").Return(false, context.DeadlineExceeded)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.False(t, out.Paid)
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestOrderUsecase_PollPayment_LockBusy(t *testing.T) {
	f := newOrderFixture()
	f.lock.ok = false
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.False(t, out.Paid)
	f.qr.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PollPayment_LockErrorStillChecks(t *testing.T) {
	f := newOrderFixture()
	f.lock.err = errors.New("redis down")
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.qr.On("Check", mock.Anything, "md5-abc").Return(false, nil)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.False(t, out.Paid)
	f.qr.AssertNumberOfCalls(t, "Check", 1)
}

func TestOrderUsecase_PollPayment_OtherUsersOrder(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)

	_, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 8}, 5)
	assertHTTPError(t, err, http.StatusNotFound, "not found")

	// 管理者は見られる
	f.qr.On("Check", mock.Anything, "md5-abc").Return(false, nil)
	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 1, IsAdmin: true}, 5)
	require.NoError(t, err)
	assert.False(t, out.Paid)
}

func TestOrderUsecase_PollPayment_CancelledOrder(t *testing.T) {
	f := newOrderFixture()
	o := khqrOrder()
	o.Status = model.OrderStatusCancelled
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(o, nil)

	out, err := f.uc.PollPayment(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	assert.False(t, out.Paid)
	f.qr.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

// =====================
// Pay
// =====================

func TestOrderUsecase_Pay_AdminMarksPaidWithoutProvider(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.items.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderItem{}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.orders.On("MarkPaid", mock.Anything, int64(5), mock.MatchedBy(func(p repo.MarkPaidParams) bool {
		return !p.Advance && p.Result.ID == "md5-abc"
	})).Return(true, nil)
	f.audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionMarkOrderPaid && l.ActorUserID == 1 && l.ResourceID == 5
	})).Return(nil).Once()

	_, err := f.uc.Pay(context.Background(), Viewer{UserID: 1, IsAdmin: true}, 5, PayOrderInput{})
	require.NoError(t, err)

	f.qr.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
	f.audits.AssertExpectations(t)
	assert.Equal(t, []string{"payment_received", "order.paid"}, f.outbox.types())
}

func TestOrderUsecase_Pay_CustomerNonCard(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)

	_, err := f.uc.Pay(context.Background(), Viewer{UserID: 7}, 5, PayOrderInput{PaymentIntentID: "pi_1"})
	assertHTTPError(t, err, http.StatusBadRequest, "Only card orders can be paid directly")
}

func TestOrderUsecase_Pay_CancelledOrder(t *testing.T) {
	f := newOrderFixture()
	o := khqrOrder()
	o.Status = model.OrderStatusCancelled
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(o, nil)

	_, err := f.uc.Pay(context.Background(), Viewer{UserID: 1, IsAdmin: true}, 5, PayOrderInput{})
	assertHTTPError(t, err, http.StatusBadRequest, "Order is cancelled")
}

func TestOrderUsecase_Pay_CardVerified(t *testing.T) {
	f := newOrderFixture()
	o := model.Order{ID: 6, UserID: 7, PaymentMethod: model.PaymentMethodCard, TotalPrice: 2660, Status: model.OrderStatusPending}
	f.orders.On("FindByID", mock.Anything, int64(6)).Return(o, nil)
	f.orders.On("SetPaymentResult", mock.Anything, int64(6), model.PaymentResult{ID: "pi_9", Status: model.PaymentStatusPending}).Return(nil)
	f.card.On("Retrieve", mock.Anything, "pi_9").Return(model.CardIntent{ID: "pi_9", Status: model.CardIntentSucceeded, Amount: 2660}, nil)
	f.orders.On("MarkPaid", mock.Anything, int64(6), mock.MatchedBy(func(p repo.MarkPaidParams) bool {
		return p.Advance && p.Result.ID == "pi_9"
	})).Return(true, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(6)).Return([]model.OrderItem{}, nil)
	f.cards.On("Claim", mock.Anything, mock.MatchedBy(func(p model.CardPayment) bool {
		return p.IntentID == "pi_9" && p.OrderID == 6 && p.UserID == 7
	})).Return(nil)

	_, err := f.uc.Pay(context.Background(), Viewer{UserID: 7}, 6, PayOrderInput{PaymentIntentID: "pi_9"})
	require.NoError(t, err)
	f.audits.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.cards.AssertExpectations(t)
}

func TestOrderUsecase_Pay_CardIntentAlreadyUsed(t *testing.T) {
	f := newOrderFixture()
	o := model.Order{ID: 6, UserID: 7, PaymentMethod: model.PaymentMethodCard, TotalPrice: 2660, Status: model.OrderStatusPending}
	f.orders.On("FindByID", mock.Anything, int64(6)).Return(o, nil)
	f.orders.On("SetPaymentResult", mock.Anything, int64(6), mock.Anything).Return(nil)
	f.card.On("Retrieve", mock.Anything, "pi_once").Return(model.CardIntent{ID: "pi_once", Status: model.CardIntentSucceeded, Amount: 2660}, nil)
	f.orders.On("MarkPaid", mock.Anything, int64(6), mock.Anything).Return(true, nil)
	f.cards.On("Claim", mock.Anything, mock.Anything).Return(repo.ErrConflict)

	_, err := f.uc.Pay(context.Background(), Viewer{UserID: 7}, 6, PayOrderInput{PaymentIntentID: "pi_once"})

	assertHTTPError(t, err, http.StatusBadRequest, "Payment intent already used")
	assert.Empty(t, f.outbox.Saved)
}

func TestOrderUsecase_Get_IncludesUser(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("FindByID", mock.Anything, int64(5)).Return(khqrOrder(), nil)
	f.items.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderItem{
		{ProductID: 1, ProductNameSnapshot: "Dog Food", UnitPriceSnapshot: 1000, Quantity: 2},
	}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(customer, nil)

	out, err := f.uc.Get(context.Background(), Viewer{UserID: 7}, 5)
	require.NoError(t, err)
	require.NotNil(t, out.User)
	assert.Equal(t, "sam@example.com", out.User.Email)
	assert.Equal(t, "Dog Food", out.Items[0].Name)
}

package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"petstore/internal/domain/model"
	"petstore/internal/logger"
	repo "petstore/internal/repository"
)

// 同時に同じ注文の決済確認をしないためのロック
type PollLocker interface {
	TryLock(ctx context.Context, orderID int64) (unlock func(), ok bool, err error)
}

type InvoiceRenderer interface {
	RenderInvoice(o model.Order, items []model.OrderItem, u model.User) (string, error)
}

// 呼び出したユーザー
type Viewer struct {
	UserID  int64
	IsAdmin bool
}

func (v Viewer) canSee(o model.Order) bool {
	return v.IsAdmin || o.UserID == v.UserID
}

type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	items      repo.OrderItemRepository
	users      repo.UserRepository
	addresses  repo.AddressRepository
	pricer     *Pricer
	inventory  *Inventory
	strategies PaymentStrategies
	lock       PollLocker
	invoices   InvoiceRenderer
	log        *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newRef     func() string
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	users repo.UserRepository,
	addresses repo.AddressRepository,
	pricer *Pricer,
	strategies PaymentStrategies,
	lock PollLocker,
	invoices InvoiceRenderer,
	log *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		items:      items,
		users:      users,
		addresses:  addresses,
		pricer:     pricer,
		inventory:  NewInventory(),
		strategies: strategies,
		lock:       lock,
		invoices:   invoices,
		log:        log,
		tracer:     otel.Tracer("usecase/order"),
		now:        time.Now,
		newRef:     uuid.NewString,
	}
}

type CreateOrderInput struct {
	Items           []CheckoutItem
	ShippingAddress *model.ShippingAddress
	AddressID       int64
	PaymentMethod   model.PaymentMethod
	PromotionCode   string
	PaymentIntentID string
	IdempotencyKey  string

	//管理者による入金済み登録
	MarkPaid bool
	PaidAt   *time.Time
}

type CreateOrderOutput struct {
	Order OrderOutput
	// 同じ冪等キーで既に作成済みだった
	Replayed bool
}

// Createは注文を確定する。
// 価格計算 → 決済の準備 → 1つのTxで注文・在庫・クーポン・outbox
func (u *OrderUsecase) Create(ctx context.Context, viewer Viewer, in CreateOrderInput) (CreateOrderOutput, error) {
	ctx, span := u.tracer.Start(ctx, "OrderUsecase.Create")
	defer span.End()

	if viewer.UserID <= 0 {
		return CreateOrderOutput{}, errUnauthorized()
	}
	if !in.PaymentMethod.Valid() {
		return CreateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}
	if in.MarkPaid && !viewer.IsAdmin {
		return CreateOrderOutput{}, errUnauthorized()
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return CreateOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}
	if key != "" {
		// 同じキーなら同じ結果
		if out, found, err := u.findReplay(ctx, viewer.UserID, key); err != nil || found {
			return out, err
		}
	}

	shipping, err := u.resolveShipping(ctx, viewer.UserID, in)
	if err != nil {
		return CreateOrderOutput{}, err
	}

	user, err := u.users.FindByID(ctx, viewer.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return CreateOrderOutput{}, errUnauthorized()
	}
	if err != nil {
		return CreateOrderOutput{}, errDB()
	}

	priced, err := u.pricer.Price(ctx, in.Items, in.PromotionCode)
	if err != nil {
		return CreateOrderOutput{}, err
	}

	strategy, err := u.strategies.For(in.PaymentMethod)
	if err != nil {
		return CreateOrderOutput{}, err
	}

	ref := u.newRef()
	span.SetAttributes(
		attribute.String("order.reference", ref),
		attribute.String("order.payment_method", string(in.PaymentMethod)),
		attribute.Int64("order.total", priced.Breakdown.TotalPrice),
	)

	now := u.now()

	var prep PaymentPrep
	if in.MarkPaid {
		// 管理者の後追い登録。プロバイダは呼ばない
		prep.Result = model.PaymentResult{
			ID:         strings.TrimSpace(in.PaymentIntentID),
			Status:     model.PaymentStatusSuccess,
			UpdateTime: now.UTC().Format(time.RFC3339),
		}
	} else {
		// 外部呼び出しはTxの外。失敗したらDBには何も書かない
		prep, err = strategy.Prepare(ctx, PrepareInput{
			Reference: ref,
			UserID:    viewer.UserID,
			Total:     priced.Breakdown.TotalPrice,
			IntentID:  strings.TrimSpace(in.PaymentIntentID),
		})
		if err != nil {
			return CreateOrderOutput{}, err
		}
	}

	order := model.Order{
		Reference:       ref,
		UserID:          viewer.UserID,
		ShippingAddress: shipping,
		PaymentMethod:   in.PaymentMethod,
		ItemsPrice:      priced.Breakdown.ItemsPrice,
		TaxPrice:        priced.Breakdown.TaxPrice,
		ShippingPrice:   priced.Breakdown.ShippingPrice,
		DiscountPrice:   priced.Breakdown.DiscountPrice,
		TotalPrice:      priced.Breakdown.TotalPrice,
		PaymentResult:   prep.Result,
		QRCode:          prep.QRCode,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if priced.Promotion != nil {
		order.PromotionCode = priced.Promotion.Code
	}
	if key != "" {
		order.IdempotencyKey = &key
	}
	if prep.Paid {
		order.IsPaid = true
		order.PaidAt = &now
	}
	if in.MarkPaid {
		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		order.IsPaid = true
		order.PaidAt = &paidAt
	}

	items := make([]model.OrderItem, 0, len(priced.Lines))
	for _, l := range priced.Lines {
		items = append(items, model.OrderItem{
			ProductID:           l.ProductID,
			ProductNameSnapshot: l.Name,
			UnitPriceSnapshot:   l.UnitPrice,
			ImageSnapshot:       l.Image,
			Quantity:            l.Quantity,
			CreatedAt:           now,
		})
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrConflict) && key != "" {
			return errIdempotentReplay
		}
		if err != nil {
			return errDB()
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return errDB()
		}

		if err := u.inventory.Commit(ctx, r.Inventory(), priced.Lines); err != nil {
			return err
		}

		if order.IsPaid && in.PaymentMethod == model.PaymentMethodCard {
			if err := claimCardPayment(ctx, r, order, order.PaymentResult.ID, now); err != nil {
				return err
			}
		}

		if priced.Promotion != nil {
			ok, err := r.Promotions().CommitUsage(ctx, priced.Promotion.Code, order.DiscountPrice, order.TotalPrice)
			if err != nil {
				return errDB()
			}
			if !ok {
				// 検証後に上限に達した
				return wrapHTTPError(http.StatusBadRequest, "Usage limit reached", ErrPromotionRejected)
			}
		}

		kind := model.NotificationOrderConfirmation
		if in.PaymentMethod == model.PaymentMethodKHQR && !order.IsPaid {
			kind = model.NotificationPaymentPending
		}
		if err := enqueueNotification(ctx, r.Outbox(), orderNotification(kind, order, user, items)); err != nil {
			return errDB()
		}
		if err := enqueueOrderEvent(ctx, r.Outbox(), model.OrderEventCreated, order); err != nil {
			return errDB()
		}
		return nil
	})
	if errors.Is(err, errIdempotentReplay) {
		// 同時に同じキーが入った。先に入った方を返す
		out, found, ferr := u.findReplay(ctx, viewer.UserID, key)
		if ferr != nil {
			return CreateOrderOutput{}, ferr
		}
		if found {
			return out, nil
		}
		return CreateOrderOutput{}, NewHTTPError(http.StatusConflict, "idempotency conflict")
	}
	if err != nil {
		span.RecordError(err)
		return CreateOrderOutput{}, err
	}

	logger.Info(ctx, u.log, "Order created",
		zap.Int64("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int64("total", order.TotalPrice),
	)

	out := toOrderOutput(order, items)
	if prep.QR != nil {
		out.QRImage = prep.QR.Image
		out.QRString = prep.QR.QRString
		out.MD5 = prep.QR.MD5
	}
	return CreateOrderOutput{Order: out}, nil
}

var errIdempotentReplay = errors.New("idempotent replay")

func (u *OrderUsecase) findReplay(ctx context.Context, userID int64, key string) (CreateOrderOutput, bool, error) {
	existing, found, err := u.orders.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return CreateOrderOutput{}, false, errDB()
	}
	if !found {
		return CreateOrderOutput{}, false, nil
	}
	items, err := u.items.ListByOrderID(ctx, existing.ID)
	if err != nil {
		return CreateOrderOutput{}, false, errDB()
	}
	return CreateOrderOutput{Order: toOrderOutput(existing, items), Replayed: true}, true, nil
}

// 配送先: address_id > 直接指定 > アドレス帳のデフォルト
func (u *OrderUsecase) resolveShipping(ctx context.Context, userID int64, in CreateOrderInput) (model.ShippingAddress, error) {
	if in.AddressID > 0 {
		addr, err := u.addresses.FindForUser(ctx, userID, in.AddressID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.ShippingAddress{}, NewHTTPError(http.StatusNotFound, "address not found")
		}
		if err != nil {
			return model.ShippingAddress{}, errDB()
		}
		return addr.ToShipping(), nil
	}

	if in.ShippingAddress == nil {
		addr, err := u.addresses.FindDefault(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.ShippingAddress{}, NewHTTPError(http.StatusBadRequest, "shipping address required")
		}
		if err != nil {
			return model.ShippingAddress{}, errDB()
		}
		return addr.ToShipping(), nil
	}

	s := model.ShippingAddress{
		Address:    strings.TrimSpace(in.ShippingAddress.Address),
		City:       strings.TrimSpace(in.ShippingAddress.City),
		PostalCode: strings.TrimSpace(in.ShippingAddress.PostalCode),
		Country:    strings.TrimSpace(in.ShippingAddress.Country),
	}
	if s.Address == "" || s.City == "" || s.PostalCode == "" || s.Country == "" {
		return model.ShippingAddress{}, NewHTTPError(http.StatusBadRequest, "shipping address required")
	}
	return s, nil
}

func (u *OrderUsecase) ListMine(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, errUnauthorized()
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderListOutput{}, errDB()
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.items.ListByOrderID(ctx, o.ID)
		if err != nil {
			return OrderListOutput{}, errDB()
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

// 本人か管理者だけ。他人の注文は「存在しない扱い」
func (u *OrderUsecase) load(ctx context.Context, viewer Viewer, orderID int64) (model.Order, error) {
	if viewer.UserID <= 0 {
		return model.Order{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, errNotFound()
	}
	if err != nil {
		return model.Order{}, errDB()
	}
	if !viewer.canSee(o) {
		return model.Order{}, errNotFound()
	}
	return o, nil
}

// Getは注文詳細（ユーザー情報つき）
func (u *OrderUsecase) Get(ctx context.Context, viewer Viewer, orderID int64) (OrderOutput, error) {
	o, err := u.load(ctx, viewer, orderID)
	if err != nil {
		return OrderOutput{}, err
	}

	items, err := u.items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, errDB()
	}

	out := toOrderOutput(o, items)
	user, err := u.users.FindByID(ctx, o.UserID)
	if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
		return OrderOutput{}, errDB()
	}
	out.User = toOrderUserOutput(user)
	return out, nil
}

type PaymentStatusOutput struct {
	Paid bool `json:"paid"`
}

// PollPaymentは入金を確認する。未入金・タイムアウト・ロック競合はpaid=falseで何も変えない
func (u *OrderUsecase) PollPayment(ctx context.Context, viewer Viewer, orderID int64) (PaymentStatusOutput, error) {
	ctx, span := u.tracer.Start(ctx, "OrderUsecase.PollPayment")
	defer span.End()

	o, err := u.load(ctx, viewer, orderID)
	if err != nil {
		return PaymentStatusOutput{}, err
	}
	if o.IsPaid {
		return PaymentStatusOutput{Paid: true}, nil
	}
	if o.Status == model.OrderStatusCancelled {
		return PaymentStatusOutput{Paid: false}, nil
	}

	unlock, ok, err := u.lock.TryLock(ctx, o.ID)
	if err != nil {
		// ロックが使えなくても条件付き更新で二重にはならない
		logger.Warn(ctx, u.log, "payment poll lock unavailable", zap.Int64("order_id", o.ID), zap.Error(err))
		unlock, ok = func() {}, true
	}
	if !ok {
		return PaymentStatusOutput{Paid: false}, nil
	}
	defer unlock()

	strategy, err := u.strategies.For(o.PaymentMethod)
	if err != nil {
		return PaymentStatusOutput{}, err
	}

	result, paid, err := strategy.Reconcile(ctx, o)
	if err != nil {
		logger.Warn(ctx, u.log, "payment status check failed",
			zap.Int64("order_id", o.ID),
			zap.String("payment_method", string(o.PaymentMethod)),
			zap.Error(err),
		)
		return PaymentStatusOutput{Paid: false}, nil
	}
	if !paid {
		return PaymentStatusOutput{Paid: false}, nil
	}

	if _, err := u.markPaid(ctx, o, result, true, 0); err != nil {
		return PaymentStatusOutput{}, err
	}
	return PaymentStatusOutput{Paid: true}, nil
}

type PayOrderInput struct {
	PaymentIntentID string
	Status          string
	UpdateTime      string
	EmailAddress    string
}

type cardVerifier interface {
	Verify(ctx context.Context, intentID string, total int64, userID int64) (model.PaymentResult, error)
}

// Payは入金済みにする（PUT /orders/:id/pay）。
// 本人はカード注文だけ（Stripeで確認）、管理者はプロバイダを呼ばずに記録できる
func (u *OrderUsecase) Pay(ctx context.Context, viewer Viewer, orderID int64, in PayOrderInput) (OrderOutput, error) {
	o, err := u.load(ctx, viewer, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	if o.Status == model.OrderStatusCancelled {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "Order is cancelled")
	}

	if !o.IsPaid {
		intentID := strings.TrimSpace(in.PaymentIntentID)

		var result model.PaymentResult
		advance := true
		var actor int64

		switch {
		case viewer.IsAdmin:
			result = model.PaymentResult{
				ID:           intentID,
				Status:       model.PaymentStatusSuccess,
				UpdateTime:   in.UpdateTime,
				EmailAddress: in.EmailAddress,
			}
			if result.ID == "" {
				result.ID = o.PaymentResult.ID
			}
			if result.UpdateTime == "" {
				result.UpdateTime = u.now().UTC().Format(time.RFC3339)
			}
			advance = false
			actor = viewer.UserID
		case o.PaymentMethod == model.PaymentMethodCard:
			if intentID == "" {
				return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "payment_intent_id required")
			}
			// 未確定でもIDは残しておく（ポーリングで後から確認できる）
			if o.PaymentResult.ID != intentID {
				if err := u.orders.SetPaymentResult(ctx, o.ID, model.PaymentResult{
					ID:     intentID,
					Status: model.PaymentStatusPending,
				}); err != nil {
					return OrderOutput{}, errDB()
				}
			}
			strategy, err := u.strategies.For(model.PaymentMethodCard)
			if err != nil {
				return OrderOutput{}, err
			}
			v, ok := strategy.(cardVerifier)
			if !ok {
				return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
			}
			result, err = v.Verify(ctx, intentID, o.TotalPrice, o.UserID)
			if err != nil {
				return OrderOutput{}, err
			}
		default:
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "Only card orders can be paid directly")
		}

		if _, err := u.markPaid(ctx, o, result, advance, actor); err != nil {
			return OrderOutput{}, err
		}
	}

	return u.Get(ctx, viewer, orderID)
}

// markPaidは未入金のときだけ入金済みにし、通知とイベントを積む。
// actor>0なら管理者操作として監査ログを残す
func (u *OrderUsecase) markPaid(ctx context.Context, o model.Order, result model.PaymentResult, advance bool, actor int64) (bool, error) {
	now := u.now()
	flipped := false

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkPaid(ctx, o.ID, repo.MarkPaidParams{
			Result:  result,
			PaidAt:  now,
			Advance: advance,
		})
		if err != nil {
			return errDB()
		}
		if !ok {
			// 先に別のリクエストが反映済み
			return nil
		}
		flipped = true

		if o.PaymentMethod == model.PaymentMethodCard {
			if err := claimCardPayment(ctx, r, o, result.ID, now); err != nil {
				return err
			}
		}

		paid := o
		paid.IsPaid = true
		paid.PaidAt = &now
		paid.PaymentResult = result
		if advance && paid.Status == model.OrderStatusPending {
			paid.Status = model.OrderStatusProcessing
		}

		user, err := r.Users().FindByID(ctx, o.UserID)
		if err != nil && !errors.Is(err, repo.ErrUserNotFound) {
			return errDB()
		}
		if err := enqueueNotification(ctx, r.Outbox(), orderNotification(model.NotificationPaymentReceived, paid, user, nil)); err != nil {
			return errDB()
		}
		if err := enqueueOrderEvent(ctx, r.Outbox(), model.OrderEventPaid, paid); err != nil {
			return errDB()
		}

		if actor > 0 {
			if err := r.AuditLogs().Create(ctx, model.NewAuditLog(
				actor, model.AuditActionMarkOrderPaid, model.AuditResourceOrder, o.ID,
				map[string]bool{"is_paid": false}, map[string]bool{"is_paid": true}, now,
			)); err != nil {
				return errDB()
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if flipped {
		logger.Info(ctx, u.log, "Order marked paid",
			zap.Int64("order_id", o.ID),
			zap.String("payment_id", result.ID),
		)
	}
	return flipped, nil
}

// claimCardPaymentはintentを注文に紐付ける。別の注文で使用済みなら400
func claimCardPayment(ctx context.Context, r repo.TxRepos, o model.Order, intentID string, at time.Time) error {
	if intentID == "" {
		return nil
	}
	err := r.CardPayments().Claim(ctx, model.CardPayment{
		IntentID:  intentID,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Amount:    o.TotalPrice,
		CreatedAt: at,
	})
	if errors.Is(err, repo.ErrConflict) {
		return wrapHTTPError(http.StatusBadRequest, "Payment intent already used", ErrPaymentGateway)
	}
	if err != nil {
		return errDB()
	}
	return nil
}

// Invoiceは請求書のHTML
func (u *OrderUsecase) Invoice(ctx context.Context, viewer Viewer, orderID int64) (string, error) {
	o, err := u.load(ctx, viewer, orderID)
	if err != nil {
		return "", err
	}

	items, err := u.items.ListByOrderID(ctx, o.ID)
	if err != nil {
		return "", errDB()
	}

	user, err := u.users.FindByID(ctx, o.UserID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return "", errNotFound()
	}
	if err != nil {
		return "", errDB()
	}

	html, err := u.invoices.RenderInvoice(o, items, *user)
	if err != nil {
		logger.Error(ctx, u.log, "invoice render failed", zap.Int64("order_id", o.ID), zap.Error(err))
		return "", NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return html, nil
}

package repository

import (
	"context"
	"time"

	"petstore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// 入金済みにするときの更新内容
type MarkPaidParams struct {
	Result model.PaymentResult
	PaidAt time.Time
	//PendingならProcessingへ進める
	Advance bool
}

// ステータス変更の更新内容
type StatusChange struct {
	From      model.OrderStatus
	To        model.OrderStatus
	At        time.Time
	ForcePaid bool // 代引きのDelivered
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// statusがFromのままのときだけ更新する（0件ならErrConflict）
	ChangeStatus(ctx context.Context, orderID int64, ch StatusChange) error

	// 未入金のときだけ入金済みにする。更新したらtrue
	MarkPaid(ctx context.Context, orderID int64, p MarkPaidParams) (bool, error)

	// 決済IDだけを記録する（カードの後払い確認用）
	SetPaymentResult(ctx context.Context, orderID int64, result model.PaymentResult) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}

package repository

import (
	"context"
	"time"

	"petstore/internal/domain/model"
)

type PromotionRepository interface {
	Create(ctx context.Context, p model.Promotion) (model.Promotion, error)
	Update(ctx context.Context, p model.Promotion) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (model.Promotion, error)

	// promo_codeキャンペーンをコード（大文字）で探す
	FindByCode(ctx context.Context, code string) (model.Promotion, error)
	List(ctx context.Context) ([]model.Promotion, error)

	// 期間内で有効なproduct_discountキャンペーン
	ListActiveProductDiscounts(ctx context.Context, now time.Time) ([]model.Promotion, error)

	// 上限に達していないときだけusage_countを+1し、割引額と売上を加算する。
	// 更新できなければfalse
	CommitUsage(ctx context.Context, code string, discount int64, orderTotal int64) (bool, error)
}

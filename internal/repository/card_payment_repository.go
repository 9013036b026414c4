package repository

import (
	"context"

	"petstore/internal/domain/model"
)

// 注文と同じTxで使う（TxRepos.CardPayments）
type CardPaymentRepository interface {
	// 使用済みのintentならErrConflict
	Claim(ctx context.Context, p model.CardPayment) error
	FindByIntentID(ctx context.Context, intentID string) (model.CardPayment, error)
}

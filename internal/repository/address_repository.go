package repository

import (
	"context"

	"petstore/internal/domain/model"
)

// アドレス帳。読み書きはすべてユーザー単位で絞る（他人の住所はErrNotFound）
type AddressRepository interface {
	// 最初の1件は自動でデフォルトになる
	Create(ctx context.Context, address model.Address) (model.Address, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Address, error)
	FindForUser(ctx context.Context, userID, addressID int64) (model.Address, error)

	// チェックアウトで配送先を省略したときに使う
	FindDefault(ctx context.Context, userID int64) (model.Address, error)

	Update(ctx context.Context, address model.Address) error
	Delete(ctx context.Context, userID, addressID int64) error
	SetDefault(ctx context.Context, userID, addressID int64) error
}

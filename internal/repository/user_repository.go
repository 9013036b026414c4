package repository

import (
	"context"

	"petstore/internal/domain/model"
)

// 見つからないときはErrUserNotFound、email重複はErrConflict
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	IncrementTokenVersion(ctx context.Context, userID int64) error
	// 有効・未ブロックでemailを持つユーザー
	ListReachable(ctx context.Context) ([]model.User, error)
}

package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（冪等キーの同時登録、重複コードなど）
	ErrConflict = errors.New("conflict")

	// ユーザーが見つかりませんを統一
	ErrUserNotFound = errors.New("user not found")
)

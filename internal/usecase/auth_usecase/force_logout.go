package auth

import (
	"context"
	"errors"

	"petstore/internal/domain/model"
	"petstore/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

type ForceLogoutOutput struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

// token_versionを上げて発行済みのJWTを全部無効にする
type ForceLogoutUsecase struct {
	tx    repository.TransactionManager
	clock Clock
}

func NewForceLogoutUsecase(tx repository.TransactionManager, clock Clock) *ForceLogoutUsecase {
	return &ForceLogoutUsecase{tx: tx, clock: clock}
}

func (u *ForceLogoutUsecase) Execute(ctx context.Context, actorUserID, targetUserID int64) (ForceLogoutOutput, error) {
	var out ForceLogoutOutput

	err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		user, err := r.Users().FindByID(ctx, targetUserID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if err := r.Users().IncrementTokenVersion(ctx, targetUserID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		out = ForceLogoutOutput{UserID: user.ID, NewTokenVersion: user.TokenVersion + 1}

		//監査ログ
		return r.AuditLogs().Create(ctx, model.NewAuditLog(
			actorUserID, model.AuditActionForceLogout, model.AuditResourceUser, targetUserID,
			map[string]int{"token_version": user.TokenVersion},
			map[string]int{"token_version": out.NewTokenVersion},
			u.clock.Now(),
		))
	})
	if err != nil {
		return ForceLogoutOutput{}, err
	}
	return out, nil
}

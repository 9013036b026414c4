package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"petstore/internal/domain/model"
	"petstore/internal/repository"
)

// 空の項目は変更しない
type UpdateProfileInput struct {
	UserID    int64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

type UpdateProfileOutput struct {
	User  model.User     `json:"user"`
	Token JwtAccessToken `json:"token"`
}

// プロフィール更新（PUT /auth/profile）。
// パスワードを変えたらtoken_versionを上げて他の端末のトークンを無効にする
type UpdateProfileUsecase struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	issuer   AccessTokenIssuer
	clock    Clock
}

func NewUpdateProfileUsecase(userRepo repository.UserRepository, hasher PasswordHasher, issuer AccessTokenIssuer, clock Clock) *UpdateProfileUsecase {
	return &UpdateProfileUsecase{userRepo: userRepo, hasher: hasher, issuer: issuer, clock: clock}
}

func (u *UpdateProfileUsecase) Execute(ctx context.Context, in UpdateProfileInput) (UpdateProfileOutput, error) {
	user, err := u.userRepo.FindByID(ctx, in.UserID)
	if err != nil {
		return UpdateProfileOutput{}, err
	}

	if v := strings.TrimSpace(in.FirstName); v != "" {
		user.FirstName = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		user.LastName = v
	}
	if v := strings.TrimSpace(in.Phone); v != "" {
		user.Phone = v
	}

	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			return UpdateProfileOutput{}, ErrInvalidEmailFormat
		}
		if other, err := u.userRepo.FindByEmail(ctx, email); err == nil && other != nil && other.ID != user.ID {
			return UpdateProfileOutput{}, ErrEmailAlreadyExists
		} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return UpdateProfileOutput{}, err
		}
		user.Email = email
	}

	if in.Password != "" {
		if len(in.Password) < minPasswordLen {
			return UpdateProfileOutput{}, ErrPasswordTooShort
		}
		if isWeakPassword(in.Password) {
			return UpdateProfileOutput{}, ErrWeakPassword
		}
		hashed, err := u.hasher.Hash(in.Password)
		if err != nil {
			return UpdateProfileOutput{}, err
		}
		user.PasswordHash = hashed
		user.TokenVersion++
	}

	now := u.clock.Now()
	user.UpdatedAt = now
	if err := u.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return UpdateProfileOutput{}, ErrEmailAlreadyExists
		}
		return UpdateProfileOutput{}, err
	}

	token, expiresAt, err := u.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return UpdateProfileOutput{}, err
	}

	return UpdateProfileOutput{
		User: *user,
		Token: JwtAccessToken{
			AccessToken:  token,
			ExpiresIn:    int(expiresAt.Sub(now).Seconds()),
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

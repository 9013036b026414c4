package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"petstore/internal/domain/model"
	"petstore/internal/repository"
)

var (
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWeakPassword       = errors.New("weak password")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

type RegisterUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

type RegisterUserOutput struct {
	User model.User `json:"user"`
}

// 会員登録。登録されるのは常にCUSTOMER
type RegisterUserUsecase struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	clock    Clock
}

func NewRegisterUserUsecase(userRepo repository.UserRepository, hasher PasswordHasher, clock Clock) *RegisterUserUsecase {
	return &RegisterUserUsecase{userRepo: userRepo, hasher: hasher, clock: clock}
}

// emailは小文字にそろえて返す
func checkCredentials(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmailFormat
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", ErrInvalidEmailFormat
	}
	if len(password) < minPasswordLen {
		return "", ErrPasswordTooShort
	}
	if isWeakPassword(password) {
		return "", ErrWeakPassword
	}
	return email, nil
}

func (u *RegisterUserUsecase) Execute(ctx context.Context, in RegisterUserInput) (RegisterUserOutput, error) {
	email, err := checkCredentials(in.Email, in.Password)
	if err != nil {
		return RegisterUserOutput{}, err
	}

	// 先に見ておけばbcryptを回さずに済む。最終的には一意制約で弾く
	if existing, err := u.userRepo.FindByEmail(ctx, email); err == nil && existing != nil {
		return RegisterUserOutput{}, ErrEmailAlreadyExists
	} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return RegisterUserOutput{}, err
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return RegisterUserOutput{}, err
	}

	now := u.clock.Now()
	user := &model.User{
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         model.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RegisterUserOutput{}, ErrEmailAlreadyExists
		}
		return RegisterUserOutput{}, err
	}

	return RegisterUserOutput{User: *user}, nil
}

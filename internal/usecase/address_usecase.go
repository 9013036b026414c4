package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"
)

// アドレス帳への入力（作成・更新共通）
type AddressInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	Address    string `json:"address" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=255"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"omitempty,max=30"`
}

// 前後の空白を落として、必須項目が空ならエラー
func (in AddressInput) normalize() (AddressInput, error) {
	out := AddressInput{
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.TrimSpace(in.Country),
		Phone:      strings.TrimSpace(in.Phone),
	}
	if out.Name == "" || out.Address == "" || out.City == "" || out.PostalCode == "" || out.Country == "" {
		return AddressInput{}, NewHTTPError(http.StatusBadRequest, "name, address, city, postal_code and country are required")
	}
	return out, nil
}

func (in AddressInput) apply(a *model.Address) {
	a.Name = in.Name
	a.Address = in.Address
	a.City = in.City
	a.PostalCode = in.PostalCode
	a.Country = in.Country
	a.Phone = in.Phone
}

type AddressUsecase struct {
	addresses repo.AddressRepository
	now       func() time.Time
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, now: time.Now}
}

func addressErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "address not found")
	}
	return errDB()
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}
	list, err := u.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, errDB()
	}
	if list == nil {
		list = []model.Address{}
	}
	return list, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, errUnauthorized()
	}
	in, err := in.normalize()
	if err != nil {
		return model.Address{}, err
	}

	now := u.now()
	a := model.Address{UserID: userID, CreatedAt: now, UpdatedAt: now}
	in.apply(&a)

	created, err := u.addresses.Create(ctx, a)
	if err != nil {
		return model.Address{}, errDB()
	}
	return created, nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID, addressID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, errUnauthorized()
	}
	in, err := in.normalize()
	if err != nil {
		return model.Address{}, err
	}

	a, err := u.addresses.FindForUser(ctx, userID, addressID)
	if err != nil {
		return model.Address{}, addressErr(err)
	}
	in.apply(&a)
	a.UpdatedAt = u.now()

	if err := u.addresses.Update(ctx, a); err != nil {
		return model.Address{}, addressErr(err)
	}
	return a, nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID, addressID int64) error {
	if userID <= 0 {
		return errUnauthorized()
	}
	if err := u.addresses.Delete(ctx, userID, addressID); err != nil {
		return addressErr(err)
	}
	return nil
}

// user内でdefaultは1つ
func (u *AddressUsecase) SetDefault(ctx context.Context, userID, addressID int64) error {
	if userID <= 0 {
		return errUnauthorized()
	}
	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		return addressErr(err)
	}
	return nil
}

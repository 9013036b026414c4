package repository

import (
	"context"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type AddressGormRepository struct {
	db *gorm.DB
}

func NewAddressGormRepository(db *gorm.DB) *AddressGormRepository {
	return &AddressGormRepository{db: db}
}

func (r *AddressGormRepository) owned(ctx context.Context, userID int64) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Address{}).Where("user_id = ?", userID)
}

func (r *AddressGormRepository) Create(ctx context.Context, address model.Address) (model.Address, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Address{}).Where("user_id = ?", address.UserID).Count(&n).Error; err != nil {
			return err
		}
		address.IsDefault = n == 0
		return tx.Create(&address).Error
	})
	if err != nil {
		return model.Address{}, err
	}
	return address, nil
}

// デフォルトを先頭に
func (r *AddressGormRepository) ListByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	var list []model.Address
	if err := r.owned(ctx, userID).Order("is_default DESC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *AddressGormRepository) FindForUser(ctx context.Context, userID, addressID int64) (model.Address, error) {
	var a model.Address
	err := r.owned(ctx, userID).Where("id = ?", addressID).First(&a).Error
	if isNotFound(err) {
		return model.Address{}, repo.ErrNotFound
	}
	return a, err
}

func (r *AddressGormRepository) FindDefault(ctx context.Context, userID int64) (model.Address, error) {
	var a model.Address
	err := r.owned(ctx, userID).Where("is_default = TRUE").First(&a).Error
	if isNotFound(err) {
		return model.Address{}, repo.ErrNotFound
	}
	return a, err
}

// is_defaultはSetDefaultでだけ変える
func (r *AddressGormRepository) Update(ctx context.Context, address model.Address) error {
	res := r.owned(ctx, address.UserID).
		Where("id = ?", address.ID).
		Select("name", "address", "city", "postal_code", "country", "phone", "updated_at").
		Updates(&address)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *AddressGormRepository) Delete(ctx context.Context, userID, addressID int64) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", addressID, userID).Delete(&model.Address{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *AddressGormRepository) SetDefault(ctx context.Context, userID, addressID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//指定住所を先に立てる。他人の住所ならここで0件
		res := tx.Model(&model.Address{}).
			Where("id = ? AND user_id = ?", addressID, userID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return tx.Model(&model.Address{}).
			Where("user_id = ? AND id <> ? AND is_default = TRUE", userID, addressID).
			Update("is_default", false).Error
	})
}

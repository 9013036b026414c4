package repository

import (
	"context"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type CardPaymentGormRepository struct {
	db *gorm.DB
}

func NewCardPaymentGormRepository(db *gorm.DB) *CardPaymentGormRepository {
	return &CardPaymentGormRepository{db: db}
}

// intent_idのユニーク制約で二重使用を止める
func (r *CardPaymentGormRepository) Claim(ctx context.Context, p model.CardPayment) error {
	err := r.db.WithContext(ctx).Create(&p).Error
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	return err
}

func (r *CardPaymentGormRepository) FindByIntentID(ctx context.Context, intentID string) (model.CardPayment, error) {
	var p model.CardPayment
	err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&p).Error
	if isNotFound(err) {
		return model.CardPayment{}, repo.ErrNotFound
	}
	return p, err
}

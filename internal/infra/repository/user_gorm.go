package repository

import (
	"context"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type UserGormRepository struct {
	db *gorm.DB
}

func NewUserGormRepository(db *gorm.DB) *UserGormRepository {
	return &UserGormRepository{db: db}
}

func (r *UserGormRepository) Create(ctx context.Context, u *model.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	return err
}

func (r *UserGormRepository) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&u).Error; err != nil {
		if isNotFound(err) {
			return nil, repo.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// emailは登録時に小文字化済み
func (r *UserGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserGormRepository) Update(ctx context.Context, u *model.User) error {
	err := r.db.WithContext(ctx).Save(u).Error
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	return err
}

// 既存トークンをすべて無効にする
func (r *UserGormRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + 1"))
	if res.Error == nil && res.RowsAffected == 0 {
		return repo.ErrUserNotFound
	}
	return res.Error
}

// 一斉送信の宛先
func (r *UserGormRepository) ListReachable(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("email <> ''").
		Where(map[string]any{"is_active": true, "is_blocked": false}).
		Order("id").
		Find(&users).Error
	return users, err
}

package repository

import (
	"context"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開中（削除済みはgormが除外）
func activeProducts(tx *gorm.DB) *gorm.DB {
	return tx.Where("is_active = ?", true)
}

func productFilter(q repo.ProductListQuery) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if q.Q != "" {
			tx = tx.Where("name ILIKE ?", "%"+q.Q+"%")
		}
		if q.Category != "" {
			tx = tx.Where("category = ?", q.Category)
		}
		if q.MinPrice != nil {
			tx = tx.Where("price >= ?", *q.MinPrice)
		}
		if q.MaxPrice != nil {
			tx = tx.Where("price <= ?", *q.MaxPrice)
		}
		return tx
	}
}

var productOrders = map[string]string{
	"price_asc":  "price ASC, id ASC",
	"price_desc": "price DESC, id DESC",
	"top":        "sold DESC, id ASC",
}

func productOrder(sort string) string {
	if o, ok := productOrders[sort]; ok {
		return o
	}
	return "created_at DESC, id DESC"
}

func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Product{}).Scopes(activeProducts, productFilter(q))

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Product
	err := base.Order(productOrder(q.Sort)).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ProductGormRepository) ListTop(ctx context.Context, limit int) ([]model.Product, error) {
	var items []model.Product
	err := r.db.WithContext(ctx).Scopes(activeProducts).Order(productOrders["top"]).Limit(limit).Find(&items).Error
	return items, err
}

func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if isNotFound(err) {
			return model.Product{}, repo.ErrNotFound
		}
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	err := r.db.WithContext(ctx).Create(&p).Error
	return p, err
}

// stock/soldには触らない
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{ID: p.ID}).
		Select("name", "description", "category", "image_url", "price", "is_active", "updated_at").
		Updates(&p)
	return affected(res)
}

func (r *ProductGormRepository) SoftDelete(ctx context.Context, id int64) error {
	return affected(r.db.WithContext(ctx).Delete(&model.Product{}, id))
}

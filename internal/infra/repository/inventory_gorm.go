package repository

import (
	"context"

	"petstore/internal/domain/model"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) product(ctx context.Context, id int64) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id)
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	return affected(r.product(ctx, productID).Update("stock", newStock))
}

// stock >= qty の行だけ更新するので、同時購入でもマイナスにならない
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.product(ctx, productID).Where("stock >= ?", qty).Updates(map[string]any{
		"stock": gorm.Expr("stock - ?", qty),
		"sold":  gorm.Expr("sold + ?", qty),
	})
	return res.RowsAffected == 1, res.Error
}

// キャンセル時の戻し。論理削除済みの商品にも戻す
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	return affected(r.product(ctx, productID).Unscoped().Updates(map[string]any{
		"stock": gorm.Expr("stock + ?", qty),
		"sold":  gorm.Expr("GREATEST(sold - ?, 0)", qty),
	}))
}

func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}

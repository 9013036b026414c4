package repository

import (
	"context"
	"time"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"

	"gorm.io/gorm"
)

type PromotionGormRepository struct {
	db *gorm.DB
}

func NewPromotionGormRepository(db *gorm.DB) *PromotionGormRepository {
	return &PromotionGormRepository{db: db}
}

func (r *PromotionGormRepository) Create(ctx context.Context, p model.Promotion) (model.Promotion, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Promotion{}, repo.ErrConflict
		}
		return model.Promotion{}, err
	}
	return p, nil
}

// 設定値だけ更新する（usage_count/total_savingsは注文確定側で増やす）
func (r *PromotionGormRepository) Update(ctx context.Context, p model.Promotion) error {
	res := r.db.WithContext(ctx).Model(&model.Promotion{}).Where("id = ?", p.ID).
		Select("description", "type", "value", "start_date", "end_date", "is_active",
			"usage_limit", "min_purchase", "applicable_product_ids", "campaign_type").
		Updates(&p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PromotionGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Promotion{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PromotionGormRepository) FindByID(ctx context.Context, id int64) (model.Promotion, error) {
	var p model.Promotion
	err := r.db.WithContext(ctx).First(&p, id).Error
	if isNotFound(err) {
		return model.Promotion{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Promotion{}, err
	}
	return p, nil
}

func (r *PromotionGormRepository) FindByCode(ctx context.Context, code string) (model.Promotion, error) {
	var p model.Promotion
	err := r.db.WithContext(ctx).
		Where("code = ? AND campaign_type = ?", code, model.CampaignPromoCode).
		First(&p).Error
	if isNotFound(err) {
		return model.Promotion{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Promotion{}, err
	}
	return p, nil
}

func (r *PromotionGormRepository) List(ctx context.Context) ([]model.Promotion, error) {
	var list []model.Promotion
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&list).Error; err != nil {
		return []model.Promotion{}, err
	}
	return list, nil
}

func (r *PromotionGormRepository) ListActiveProductDiscounts(ctx context.Context, now time.Time) ([]model.Promotion, error) {
	var list []model.Promotion
	err := r.db.WithContext(ctx).
		Where("campaign_type = ? AND is_active = ? AND start_date <= ? AND end_date >= ?",
			model.CampaignProductDiscount, true, now, now).
		Order("id asc").
		Find(&list).Error
	if err != nil {
		return []model.Promotion{}, err
	}
	return list, nil
}

// 上限チェックとインクリメントを1つのUPDATEで行う
func (r *PromotionGormRepository) CommitUsage(ctx context.Context, code string, discount int64, orderTotal int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Promotion{}).
		Where("code = ? AND (usage_limit = 0 OR usage_count < usage_limit)", code).
		Updates(map[string]interface{}{
			"usage_count":   gorm.Expr("usage_count + 1"),
			"total_savings": gorm.Expr("total_savings + ?", discount),
			"revenue":       gorm.Expr("revenue + ?", orderTotal),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

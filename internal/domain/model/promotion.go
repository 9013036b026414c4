package model

import "time"

type PromotionType string

const (
	PromotionTypePercent  PromotionType = "percent"
	PromotionTypeFixed    PromotionType = "fixed"
	PromotionTypeShipping PromotionType = "shipping"
)

func (t PromotionType) Valid() bool {
	switch t {
	case PromotionTypePercent, PromotionTypeFixed, PromotionTypeShipping:
		return true
	}
	return false
}

// promo_codeはクーポン入力、product_discountは商品バッジ表示用
type CampaignType string

const (
	CampaignPromoCode       CampaignType = "promo_code"
	CampaignProductDiscount CampaignType = "product_discount"
)

type Promotion struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string        `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Description string        `gorm:"type:text" json:"description"`
	Type        PromotionType `gorm:"type:varchar(20);not null" json:"type"`

	//percentなら%（10=10%）、fixedならセント。shippingでは使わない
	Value int64 `gorm:"not null" json:"value"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`

	//0は無制限。usage_countは注文確定時だけ増える
	UsageLimit int64 `gorm:"not null;default:0" json:"usage_limit"`
	UsageCount int64 `gorm:"not null;default:0" json:"usage_count"`

	MinPurchase          int64        `gorm:"not null;default:0" json:"min_purchase"`
	ApplicableProductIDs []int64      `gorm:"serializer:json;type:jsonb" json:"applicable_product_ids"`
	CampaignType         CampaignType `gorm:"type:varchar(30);not null;default:'promo_code';index" json:"campaign_type"`

	//累計割引額と売上（セント）
	TotalSavings int64 `gorm:"not null;default:0" json:"total_savings"`
	Revenue      int64 `gorm:"not null;default:0" json:"revenue"`

	CreatedBy int64     `gorm:"not null;default:0" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 対象商品の指定があるか
func (p Promotion) IsScoped() bool {
	return len(p.ApplicableProductIDs) > 0
}

func (p Promotion) AppliesTo(productID int64) bool {
	if !p.IsScoped() {
		return true
	}
	for _, id := range p.ApplicableProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

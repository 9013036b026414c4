package model

import (
	"time"

	"gorm.io/gorm"
)

// 価格はセント。在庫は条件付きUPDATEでのみ減らす（マイナスにならない）
type Product struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `gorm:"type:varchar(100);index" json:"category"`
	Price       int64          `gorm:"not null" json:"price"`
	Stock       int64          `gorm:"not null;check:stock >= 0" json:"stock"`
	Sold        int64          `gorm:"not null;default:0;index" json:"sold"`
	ImageURL    string         `gorm:"type:varchar(500)" json:"image_url"`
	Rating      float64        `gorm:"not null;default:0" json:"rating"`
	NumReviews  int64          `gorm:"not null;default:0" json:"num_reviews"`
	IsActive    bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

package model

import "time"

// 管理者による在庫の棚卸し記録。Delta = StockAfter - StockBefore
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64     `gorm:"not null;index:idx_adjust_product" json:"product_id"`
	AdminUserID int64     `gorm:"not null" json:"admin_user_id"`
	StockBefore int64     `gorm:"not null" json:"stock_before"`
	StockAfter  int64     `gorm:"not null" json:"stock_after"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;index:idx_adjust_product" json:"created_at"`
}

func NewInventoryAdjustment(productID, adminUserID, before, after int64, reason string, at time.Time) InventoryAdjustment {
	return InventoryAdjustment{
		ProductID:   productID,
		AdminUserID: adminUserID,
		StockBefore: before,
		StockAfter:  after,
		Delta:       after - before,
		Reason:      reason,
		CreatedAt:   at,
	}
}

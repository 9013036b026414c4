package model

import "time"

// 注文に使ったPaymentIntent。1つのintentは1注文にしか使えない
type CardPayment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IntentID  string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"intent_id"`
	OrderID   int64     `gorm:"not null;index" json:"order_id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

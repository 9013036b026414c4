package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// 進行順。Cancelledはランク外
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// 終端（これ以上変更できない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionはfrom→toが許されるかを返す。
// 前進のみ。Cancelledは終端以外からならどこからでも可。同じ状態は呼び出し側でno-op扱い。
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodKHQR PaymentMethod = "khqr"
	PaymentMethodCOD  PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodKHQR, PaymentMethodCOD:
		return true
	}
	return false
}

// 表示用ラベル
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentMethodCard:
		return "Credit Card"
	case PaymentMethodKHQR:
		return "KHQR"
	case PaymentMethodCOD:
		return "Cash on Delivery"
	}
	return string(m)
}

const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
)

type ShippingAddress struct {
	Address    string `gorm:"type:varchar(255)" json:"address"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	Country    string `gorm:"type:varchar(100)" json:"country"`
}

// 決済結果（外部の取引ID・状態・時刻・支払者メール）
type PaymentResult struct {
	ID           string `gorm:"type:varchar(255);index" json:"id"`
	Status       string `gorm:"type:varchar(30)" json:"status"`
	UpdateTime   string `gorm:"type:varchar(64)" json:"update_time"`
	EmailAddress string `gorm:"type:varchar(255)" json:"email_address"`
}

type Order struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference string `gorm:"type:varchar(36);not null;uniqueIndex" json:"reference"`
	UserID    int64  `gorm:"not null;index;uniqueIndex:idx_orders_user_idem" json:"user_id"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PromotionCode   string          `gorm:"type:varchar(50)" json:"promotion_code,omitempty"`

	//金額（セント）
	ItemsPrice    int64 `gorm:"not null" json:"items_price"`
	TaxPrice      int64 `gorm:"not null" json:"tax_price"`
	ShippingPrice int64 `gorm:"not null" json:"shipping_price"`
	DiscountPrice int64 `gorm:"not null;default:0" json:"discount_price"`
	TotalPrice    int64 `gorm:"not null" json:"total_price"`

	PaymentResult PaymentResult `gorm:"embedded;embeddedPrefix:payment_" json:"payment_result"`

	//KHQRの文字列。画像の再生成に使う
	QRCode string `gorm:"type:text" json:"-"`

	IsPaid      bool        `gorm:"not null;default:false;index" json:"is_paid"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	IsDelivered bool        `gorm:"not null;default:false" json:"is_delivered"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex:idx_orders_user_idem" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

package model

// 通知の種類
type NotificationKind string

const (
	NotificationOrderConfirmation  NotificationKind = "order_confirmation"
	NotificationPaymentPending     NotificationKind = "payment_pending"
	NotificationPaymentReceived    NotificationKind = "payment_received"
	NotificationStatusChanged      NotificationKind = "status_changed"
	NotificationPromotionBroadcast NotificationKind = "promotion_broadcast"
)

// notificationsトピックのpayload。送信時に必要な値は書き込み時点で確定させる
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	To        string           `json:"to"`
	Name      string           `json:"name"`
	OrderID   int64            `json:"order_id,omitempty"`
	Reference string           `json:"reference,omitempty"`
	Total     int64            `json:"total,omitempty"`
	Method    PaymentMethod    `json:"payment_method,omitempty"`
	Status    OrderStatus      `json:"status,omitempty"`
	Items     []OrderItem      `json:"items,omitempty"`

	//promotion_broadcast用
	PromotionCode  string        `json:"promotion_code,omitempty"`
	PromotionType  PromotionType `json:"promotion_type,omitempty"`
	PromotionValue int64         `json:"promotion_value,omitempty"`
	PromotionEnds  string        `json:"promotion_ends,omitempty"`
}

// order_eventsトピックのpayload
type OrderEvent struct {
	Type      string      `json:"type"`
	OrderID   int64       `json:"order_id"`
	Reference string      `json:"reference"`
	UserID    int64       `json:"user_id"`
	Status    OrderStatus `json:"status"`
	IsPaid    bool        `json:"is_paid"`
	Total     int64       `json:"total"`
}

const (
	OrderEventCreated       = "order.created"
	OrderEventPaid          = "order.paid"
	OrderEventStatusChanged = "order.status_changed"
)

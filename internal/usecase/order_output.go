package usecase

import (
	"time"

	"petstore/internal/domain/model"
)

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

// 注文詳細で返すユーザー情報
type OrderUserOutput struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type OrderOutput struct {
	ID              int64                 `json:"id"`
	Reference       string                `json:"reference"`
	UserID          int64                 `json:"user_id"`
	User            *OrderUserOutput      `json:"user,omitempty"`
	Items           []OrderItemOutput     `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   model.PaymentMethod   `json:"payment_method"`
	PromotionCode   string                `json:"promotion_code,omitempty"`
	ItemsPrice      int64                 `json:"items_price"`
	TaxPrice        int64                 `json:"tax_price"`
	ShippingPrice   int64                 `json:"shipping_price"`
	DiscountPrice   int64                 `json:"discount_price"`
	TotalPrice      int64                 `json:"total_price"`
	PaymentResult   model.PaymentResult   `json:"payment_result"`
	IsPaid          bool                  `json:"is_paid"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	IsDelivered     bool                  `json:"is_delivered"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	Status          string                `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`

	//KHQRのときだけ
	QRImage  string `json:"qr_image,omitempty"`
	QRString string `json:"qr_string,omitempty"`
	MD5      string `json:"md5,omitempty"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Image:     it.ImageSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		Reference:       o.Reference,
		UserID:          o.UserID,
		Items:           outItems,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PromotionCode:   o.PromotionCode,
		ItemsPrice:      o.ItemsPrice,
		TaxPrice:        o.TaxPrice,
		ShippingPrice:   o.ShippingPrice,
		DiscountPrice:   o.DiscountPrice,
		TotalPrice:      o.TotalPrice,
		PaymentResult:   o.PaymentResult,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderUserOutput(u *model.User) *OrderUserOutput {
	if u == nil {
		return nil
	}
	return &OrderUserOutput{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

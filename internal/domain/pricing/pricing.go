// Package pricing はサーバー側で注文金額を確定させる。
// 入力は現在のカタログ価格だけで、クライアントの金額は使わない。
package pricing

import (
	"github.com/shopspring/decimal"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/domain/promotion"
)

type Policy struct {
	TaxRate               decimal.Decimal
	ShippingFee           int64
	FreeShippingThreshold int64
}

func PolicyFromConfig(c config.Pricing) Policy {
	return Policy{
		TaxRate:               decimal.NewFromFloat(c.TaxRate),
		ShippingFee:           c.ShippingFee,
		FreeShippingThreshold: c.FreeShippingThreshold,
	}
}

// 価格スナップショット済みの明細
type Line struct {
	ProductID int64
	Name      string
	Image     string
	UnitPrice int64
	Quantity  int64
}

func (l Line) Amount() int64 {
	return l.UnitPrice * l.Quantity
}

type Breakdown struct {
	ItemsPrice    int64 `json:"items_price"`
	TaxPrice      int64 `json:"tax_price"`
	ShippingPrice int64 `json:"shipping_price"`
	DiscountPrice int64 `json:"discount_price"`
	TotalPrice    int64 `json:"total_price"`
}

// 送料: 小計がしきい値を超えたら無料
func (p Policy) Shipping(subtotal int64) int64 {
	if subtotal > p.FreeShippingThreshold {
		return 0
	}
	return p.ShippingFee
}

// 税: 割引前の小計に対して計算し、セント単位で四捨五入
func (p Policy) Tax(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(p.TaxRate).Round(0).IntPart()
}

// Quoteは明細と（検証済みの）プロモーションから金額を出す。promoはnil可。
func Quote(lines []Line, policy Policy, promo *model.Promotion) Breakdown {
	var items int64
	promoLines := make([]promotion.Line, 0, len(lines))
	for _, l := range lines {
		items += l.Amount()
		promoLines = append(promoLines, promotion.Line{ProductID: l.ProductID, Amount: l.Amount()})
	}

	b := Breakdown{
		ItemsPrice:    items,
		TaxPrice:      policy.Tax(items),
		ShippingPrice: policy.Shipping(items),
	}

	if promo != nil {
		base := promotion.Base(*promo, promoLines)
		b.DiscountPrice = promotion.Discount(*promo, base, items, b.ShippingPrice)
	}

	b.TotalPrice = Total(b.ItemsPrice, b.TaxPrice, b.ShippingPrice, b.DiscountPrice)
	return b
}

// total = max(0, items + tax + shipping - discount)
func Total(items, tax, shipping, discount int64) int64 {
	t := items + tax + shipping - discount
	if t < 0 {
		return 0
	}
	return t
}

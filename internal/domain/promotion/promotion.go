// Package promotion はクーポンの検証と割引額の計算（DBに触らない）。
package promotion

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"petstore/internal/domain/model"
)

// 検証に失敗した理由
type Reason string

const (
	ReasonNotFound             Reason = "NotFound"
	ReasonInactive             Reason = "Inactive"
	ReasonExpired              Reason = "Expired"
	ReasonUsageLimitReached    Reason = "UsageLimitReached"
	ReasonBelowMinimumPurchase Reason = "BelowMinimumPurchase"
)

type Rejection struct {
	Reason      Reason
	Code        string
	MinPurchase int64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonNotFound:
		return "Invalid or expired code"
	case ReasonInactive:
		return "This promotion is not active"
	case ReasonExpired:
		return "This promotion is not active yet or has expired"
	case ReasonUsageLimitReached:
		return "Usage limit reached"
	case ReasonBelowMinimumPurchase:
		return fmt.Sprintf("Minimum purchase of $%s required", decimal.New(r.MinPurchase, -2).StringFixed(2))
	}
	return "promotion rejected"
}

func Reject(reason Reason, code string) *Rejection {
	return &Rejection{Reason: reason, Code: code}
}

// コードは大文字で保存・検索する
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validateはsubtotal（セント）に対してプロモーションが使えるかを判定する。
// 判定順: 有効フラグ → 期間 → 利用上限 → 最低購入額
func Validate(p model.Promotion, subtotal int64, now time.Time) error {
	code := p.Code
	if !p.IsActive {
		return Reject(ReasonInactive, code)
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return Reject(ReasonExpired, code)
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return Reject(ReasonUsageLimitReached, code)
	}
	if p.MinPurchase > 0 && subtotal < p.MinPurchase {
		return &Rejection{Reason: ReasonBelowMinimumPurchase, Code: code, MinPurchase: p.MinPurchase}
	}
	return nil
}

// 割引計算に使う明細
type Line struct {
	ProductID int64
	Amount    int64 // 単価×数量
}

// Baseは割引の対象額。対象商品の指定があればその明細だけを合計する
func Base(p model.Promotion, lines []Line) int64 {
	var base int64
	for _, l := range lines {
		if p.AppliesTo(l.ProductID) {
			base += l.Amount
		}
	}
	return base
}

// Discountは割引額（セント）を返す。subtotalを超えない。
func Discount(p model.Promotion, base int64, subtotal int64, shippingFee int64) int64 {
	var d int64
	switch p.Type {
	case model.PromotionTypePercent:
		d = decimal.NewFromInt(base).
			Mul(decimal.NewFromInt(p.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case model.PromotionTypeFixed:
		d = p.Value
		if p.IsScoped() && d > base {
			d = base
		}
	case model.PromotionTypeShipping:
		d = shippingFee
	}

	if d < 0 {
		d = 0
	}
	if d > subtotal {
		d = subtotal
	}
	return d
}

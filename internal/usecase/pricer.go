package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"petstore/internal/domain/model"
	"petstore/internal/domain/pricing"
	"petstore/internal/domain/promotion"
	repo "petstore/internal/repository"
)

// 注文・見積もりの明細（金額は受け取らない）
type CheckoutItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

// Pricedは確定した明細と金額
type Priced struct {
	Lines     []pricing.Line
	Breakdown pricing.Breakdown
	Promotion *model.Promotion
}

// Pricerは現在の商品価格と在庫から金額を出す
type Pricer struct {
	products   repo.ProductRepository
	promotions repo.PromotionRepository
	inventory  *Inventory
	policy     pricing.Policy
	now        func() time.Time
}

func NewPricer(
	products repo.ProductRepository,
	promotions repo.PromotionRepository,
	policy pricing.Policy,
) *Pricer {
	return &Pricer{
		products:   products,
		promotions: promotions,
		inventory:  NewInventory(),
		policy:     policy,
		now:        time.Now,
	}
}

func (p *Pricer) Policy() pricing.Policy {
	return p.policy
}

// Priceは明細を検証して金額を計算する。
// 存在しない商品は404、在庫不足は400、プロモーション不可は400/404
func (p *Pricer) Price(ctx context.Context, items []CheckoutItem, code string) (Priced, error) {
	merged, err := mergeItems(items)
	if err != nil {
		return Priced{}, err
	}

	products := make(map[int64]model.Product, len(merged))
	lines := make([]pricing.Line, 0, len(merged))
	for _, it := range merged {
		prod, err := p.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !prod.IsActive) {
			return Priced{}, NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product not found: %d", it.ProductID))
		}
		if err != nil {
			return Priced{}, errDB()
		}
		products[prod.ID] = prod

		// 価格は必ずカタログから取る
		lines = append(lines, pricing.Line{
			ProductID: prod.ID,
			Name:      prod.Name,
			Image:     prod.ImageURL,
			UnitPrice: prod.Price,
			Quantity:  it.Quantity,
		})
	}

	if shortfalls := p.inventory.CheckAvailability(products, merged); len(shortfalls) > 0 {
		s := shortfalls[0]
		return Priced{}, wrapHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Insufficient stock for %s", products[s.ProductID].Name), ErrInsufficientStock)
	}

	var promo *model.Promotion
	if strings.TrimSpace(code) != "" {
		var items int64
		for _, l := range lines {
			items += l.Amount()
		}
		found, err := p.lookupPromotion(ctx, code, items)
		if err != nil {
			return Priced{}, err
		}
		promo = &found
	}

	return Priced{
		Lines:     lines,
		Breakdown: pricing.Quote(lines, p.policy, promo),
		Promotion: promo,
	}, nil
}

// lookupPromotionはコードを探して検証する
func (p *Pricer) lookupPromotion(ctx context.Context, code string, subtotal int64) (model.Promotion, error) {
	normalized := promotion.NormalizeCode(code)

	found, err := p.promotions.FindByCode(ctx, normalized)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Promotion{}, promotionError(promotion.Reject(promotion.ReasonNotFound, normalized))
	}
	if err != nil {
		return model.Promotion{}, errDB()
	}

	if err := promotion.Validate(found, subtotal, p.now()); err != nil {
		return model.Promotion{}, promotionError(err)
	}
	return found, nil
}

// 検証エラーをHTTPErrorへ（不明なコードだけ404）
func promotionError(err error) error {
	var rej *promotion.Rejection
	if !errors.As(err, &rej) {
		return errDB()
	}
	status := http.StatusBadRequest
	if rej.Reason == promotion.ReasonNotFound {
		status = http.StatusNotFound
	}
	return wrapHTTPError(status, rej.Error(), ErrPromotionRejected)
}

// 同じ商品の明細はまとめる（最初に出た順）
func mergeItems(items []CheckoutItem) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "No order items")
	}

	idx := make(map[int64]int, len(items))
	out := make([]CheckoutItem, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity <= 0 {
			return nil, NewHTTPError(http.StatusBadRequest, "quantity must be > 0")
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

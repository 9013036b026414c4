package usecase

import (
	"context"
	"fmt"
	"net/http"

	"petstore/internal/domain/model"
	"petstore/internal/domain/pricing"
	repo "petstore/internal/repository"
)

type Shortfall struct {
	ProductID int64
	Requested int64
	Available int64
}

// Inventoryは在庫の確認と確保・戻し
type Inventory struct{}

func NewInventory() *Inventory {
	return &Inventory{}
}

// CheckAvailabilityは読み取りだけ。足りない明細を返す
func (i *Inventory) CheckAvailability(products map[int64]model.Product, items []CheckoutItem) []Shortfall {
	var out []Shortfall
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			out = append(out, Shortfall{ProductID: it.ProductID, Requested: it.Quantity})
			continue
		}
		if it.Quantity > p.Stock {
			out = append(out, Shortfall{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock})
		}
	}
	return out
}

// Commitは明細ごとに条件付きで在庫を減らす。1件でも足りなければエラー（Txごと戻す）
func (i *Inventory) Commit(ctx context.Context, inv repo.InventoryRepository, lines []pricing.Line) error {
	for _, l := range lines {
		ok, err := inv.DecreaseStockIfEnough(ctx, l.ProductID, l.Quantity)
		if err != nil {
			return errDB()
		}
		if !ok {
			return wrapHTTPError(http.StatusBadRequest, fmt.Sprintf("Insufficient stock for %s", l.Name), ErrInsufficientStock)
		}
	}
	return nil
}

// Releaseはキャンセル時に在庫とsoldを戻す
func (i *Inventory) Release(ctx context.Context, inv repo.InventoryRepository, items []model.OrderItem) error {
	for _, it := range items {
		if err := inv.IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return errDB()
		}
	}
	return nil
}
